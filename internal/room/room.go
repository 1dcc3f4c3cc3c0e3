package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/types"
)

// Options carries everything a room needs besides its connections.
type Options struct {
	Map            game.MapConfig
	Round          game.RoundRules
	Gather         game.GatherRules
	Attack         game.AttackRules
	CharacterCount int
	TickInterval   time.Duration
}

// Room owns one map's session registry, round state, and gather state.
// All mutation happens on the loop goroutine; everything else talks to it
// through the inbox, so per-message handling is atomic by construction.
type Room struct {
	inbox   chan Msg
	opts    Options
	log     *zap.Logger
	reg     *registry
	clients map[string]chan []byte
	round   game.RoundState
	gather  game.GatherState
	tally   *game.VoteTally
	attack  *game.Attack
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, opts Options, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	r := &Room{
		inbox:   make(chan Msg, 64),
		opts:    opts,
		log:     log.With(zap.String("room", opts.Map.ID)),
		reg:     newRegistry(opts.CharacterCount),
		clients: make(map[string]chan []byte),
		round:   game.NewRoundState(opts.Round),
		gather:  game.GatherState{Status: game.GatherIdle},
		tally:   game.NewVoteTally(game.MapIDs()),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) ID() string { return r.opts.Map.ID }

func (r *Room) loop() {
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-ticker.C:
			r.tick(time.Now())

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg.ConnID)
			case Move:
				r.handleMove(msg)
			case AttackIntent:
				r.handleAttack(msg.ConnID, time.Now())
			case Vote:
				r.handleVote(msg)
			case RequestRoundStart:
				r.applyRound(game.RoundCommand{
					Type:    game.CmdSummon,
					Now:     time.Now(),
					Players: r.reg.list(),
				})
			case Chat:
				r.handleChat(msg)
			case Signal:
				r.sendTo(msg.Target, types.ServerMessage{
					Type: types.MsgSignal,
					From: msg.From,
					Data: msg.Data,
				})
			case GetView:
				msg.Reply <- View{
					NumClients: len(r.clients),
					Players:    r.reg.snapshot(),
					Round:      r.round,
					Gather:     r.gather,
					Votes:      r.tally.Count(),
				}
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	p := r.reg.join(msg.ConnID, msg.Nickname, r.opts.Map)
	r.clients[msg.ConnID] = msg.Outbox
	msg.Reply <- p

	r.sendTo(msg.ConnID, types.ServerMessage{Type: types.MsgWelcome, ID: p.ID, Player: &p})

	// Full snapshot to the joiner only, never a delta: a late joiner must
	// not depend on having seen any earlier broadcast.
	round := r.roundInfo()
	gather := r.gatherInfo()
	r.sendTo(msg.ConnID, types.ServerMessage{
		Type:    types.MsgSnapshot,
		Players: r.reg.snapshot(),
		Round:   &round,
		Gather:  &gather,
	})

	r.broadcastExcept(msg.ConnID, types.ServerMessage{Type: types.MsgPlayerJoined, Player: &p})
	r.log.Info("player joined",
		zap.String("id", p.ID),
		zap.String("nickname", p.Nickname),
		zap.Int("players", r.reg.size()))
}

func (r *Room) handleLeave(connID string) {
	r.removeClient(connID)
	r.tally.Remove(connID)
	if !r.reg.remove(connID) {
		return
	}
	// Removal is broadcast before any later message for this id can be
	// processed; stale moves then hit the unknown-id no-op path.
	r.broadcastExcept("", types.ServerMessage{Type: types.MsgPlayerLeft, ID: connID})
	r.log.Info("player left", zap.String("id", connID), zap.Int("players", r.reg.size()))

	r.applyRound(game.RoundCommand{
		Type:     game.CmdPlayerLeft,
		Now:      time.Now(),
		Players:  r.reg.list(),
		PlayerID: connID,
	})
}

func (r *Room) handleMove(msg Move) {
	if !r.reg.applyMove(msg.ConnID, msg.Position, msg.Rotation, msg.IsMoving, msg.IsRunning) {
		return
	}
	r.broadcastExcept(msg.ConnID, types.ServerMessage{
		Type:      types.MsgPlayerMoved,
		ID:        msg.ConnID,
		Position:  &msg.Position,
		Rotation:  &msg.Rotation,
		IsMoving:  msg.IsMoving,
		IsRunning: msg.IsRunning,
	})
}

func (r *Room) handleAttack(connID string, now time.Time) {
	if r.round.Phase != game.PhasePlaying || connID != r.round.InfectedID {
		return
	}
	if p, ok := r.reg.get(connID); !ok || p.IsDead {
		return
	}
	if r.attack.Active(r.opts.Attack, now) {
		return
	}
	r.attack = &game.Attack{StartedAt: now}
	r.broadcastExcept(connID, types.ServerMessage{Type: types.MsgAttack, ID: connID})
}

func (r *Room) handleVote(msg Vote) {
	if r.round.Phase != game.PhaseVoting {
		return
	}
	if _, ok := r.reg.get(msg.ConnID); !ok {
		return
	}
	if !r.tally.Cast(msg.ConnID, msg.OptionID) {
		r.log.Debug("vote for unknown option", zap.String("option", msg.OptionID))
	}
}

func (r *Room) handleChat(msg Chat) {
	p, ok := r.reg.get(msg.ConnID)
	if !ok || msg.Text == "" {
		return
	}
	r.broadcastExcept("", types.ServerMessage{
		Type:     types.MsgChat,
		ID:       msg.ConnID,
		Nickname: p.Nickname,
		Text:     msg.Text,
	})
}

func (r *Room) tick(now time.Time) {
	if r.round.Phase == game.PhasePlaying && r.attack != nil {
		if infected, ok := r.reg.get(r.round.InfectedID); ok {
			if victim, hit := r.attack.Resolve(r.opts.Attack, now, *infected, r.reg.list()); hit {
				r.applyRound(game.RoundCommand{
					Type:     game.CmdKillSurvivor,
					Now:      now,
					Players:  r.reg.list(),
					PlayerID: victim,
				})
			}
		}
		if !r.attack.Active(r.opts.Attack, now) {
			r.attack = nil
		}
	}

	r.applyRound(game.RoundCommand{
		Type:    game.CmdTick,
		Now:     now,
		Players: r.reg.list(),
		NextMap: r.tally.Winner(),
	})

	if r.round.Phase == game.PhaseWaiting {
		inside, alive, total := game.CountInside(r.reg.list(), r.opts.Map.GatherCenter, r.opts.Map.GatherRadius)
		next, fired := r.gather.Observe(r.opts.Gather, now, inside, alive, total)
		if next.Status != r.gather.Status || next.Inside != r.gather.Inside ||
			next.Alive != r.gather.Alive || next.Total != r.gather.Total {
			r.gather = next
			gather := r.gatherInfo()
			r.broadcastExcept("", types.ServerMessage{Type: types.MsgGatherState, Gather: &gather})
		} else {
			r.gather = next
		}
		if fired {
			r.applyRound(game.RoundCommand{Type: game.CmdSummon, Now: now, Players: r.reg.list()})
		}
	}
}

// applyRound runs a command through the round state machine and performs
// the side effects its events call for. Rejected commands are expected
// races (gather firing during a round, manual start mid-countdown).
func (r *Room) applyRound(cmd game.RoundCommand) {
	events, next, err := game.ApplyRound(r.round, cmd)
	if err != nil {
		r.log.Debug("round command rejected", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	r.round = next

	for _, ev := range events {
		switch ev.Type {
		case game.EvtCountdownStarted:
			// The round leaving WAITING invalidates any summon hold in
			// progress; the next WAITING phase must start from idle, not
			// from a frozen countdown deadline.
			r.resetGather()

		case game.EvtRoundStarted:
			r.attack = nil
			r.reg.setRoles(ev.PlayerID)
			r.log.Info("round started", zap.String("infected", ev.PlayerID))

		case game.EvtSurvivorKilled:
			if rec, ok := r.reg.get(ev.PlayerID); ok {
				rec.IsDead = true
			}
			r.broadcastExcept("", types.ServerMessage{Type: types.MsgPlayerDied, ID: ev.PlayerID})
			r.log.Info("survivor killed", zap.String("id", ev.PlayerID))

		case game.EvtRoundEnded:
			r.attack = nil
			r.tally.Reset()
			r.log.Info("round ended, voting open")

		case game.EvtRoundAborted:
			r.clearRoles()
			r.log.Info("round aborted")

		case game.EvtRoundReset:
			r.clearRoles()
			r.tally.Reset()
			r.log.Info("round reset", zap.String("nextMap", ev.NextMap))
		}
	}

	if len(events) > 0 {
		round := r.roundInfo()
		r.broadcastExcept("", types.ServerMessage{Type: types.MsgRoundState, Round: &round})
	}
}

func (r *Room) resetGather() {
	if r.gather.Status == game.GatherIdle && r.gather.CountdownEnd.IsZero() {
		return
	}
	r.gather = game.GatherState{
		Status: game.GatherIdle,
		Inside: r.gather.Inside,
		Alive:  r.gather.Alive,
		Total:  r.gather.Total,
	}
	gather := r.gatherInfo()
	r.broadcastExcept("", types.ServerMessage{Type: types.MsgGatherState, Gather: &gather})
}

func (r *Room) clearRoles() {
	r.attack = nil
	r.reg.clearRoles()
}

func (r *Room) roundInfo() types.RoundInfo {
	info := types.RoundInfo{
		Phase:      r.round.Phase,
		InfectedID: r.round.InfectedID,
		NextMap:    r.round.NextMap,
	}
	if !r.round.CountdownEnd.IsZero() {
		info.CountdownEnd = r.round.CountdownEnd.UnixMilli()
	}
	return info
}

func (r *Room) gatherInfo() types.GatherInfo {
	info := types.GatherInfo{
		Status: r.gather.Status,
		Inside: r.gather.Inside,
		Alive:  r.gather.Alive,
		Total:  r.gather.Total,
	}
	if info.Status == "" {
		info.Status = game.GatherIdle
	}
	if !r.gather.CountdownEnd.IsZero() {
		info.CountdownEnd = r.gather.CountdownEnd.UnixMilli()
	}
	return info
}

func (r *Room) sendTo(connID string, msg types.ServerMessage) {
	ch, ok := r.clients[connID]
	if !ok {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case ch <- payload:
	default:
		r.dropSlow(connID)
	}
}

// broadcastExcept fans a message out to every client except the given id
// (empty id means everyone). A full outbox means the client stopped
// draining; drop it rather than stall the loop.
func (r *Room) broadcastExcept(exceptID string, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var slow []string
	for id, ch := range r.clients {
		if id == exceptID {
			continue
		}
		select {
		case ch <- payload:
		default:
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		r.dropSlow(id)
	}
}

func (r *Room) dropSlow(connID string) {
	r.log.Warn("dropping slow client", zap.String("id", connID))
	r.handleLeave(connID)
}

func (r *Room) removeClient(connID string) {
	if ch, ok := r.clients[connID]; ok {
		close(ch)
		delete(r.clients, connID)
	}
}

func (r *Room) shutdown() {
	for id := range r.clients {
		r.removeClient(id)
	}
	r.cancel()
}
