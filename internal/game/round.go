package game

import (
	"errors"
	"math/rand"
	"time"
)

var ErrWrongPhase = errors.New("command not valid in current phase")
var ErrNotEnoughPlayers = errors.New("not enough players")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhaseStarting  Phase = "starting"
	PhasePlaying   Phase = "playing"
	PhaseVoting    Phase = "voting"
)

// RoundRules are the fixed timings and thresholds for a room's rounds.
type RoundRules struct {
	MinPlayers    int
	Countdown     time.Duration
	StartingDelay time.Duration
	Voting        time.Duration
}

// RoundState is the per-room round lifecycle. CountdownEnd is the absolute
// deadline for COUNTDOWN/STARTING/VOTING; clients derive remaining time
// from it against their own clock.
type RoundState struct {
	Phase        Phase
	CountdownEnd time.Time
	InfectedID   string
	NextMap      string
	Rules        RoundRules
}

func NewRoundState(rules RoundRules) RoundState {
	return RoundState{Phase: PhaseWaiting, Rules: rules}
}

type RoundCommandType string

const (
	CmdSummon       RoundCommandType = "Summon"
	CmdTick         RoundCommandType = "Tick"
	CmdPlayerLeft   RoundCommandType = "PlayerLeft"
	CmdKillSurvivor RoundCommandType = "KillSurvivor"
)

// RoundCommand carries the inputs a transition needs. Players is the
// room's current registry contents at the time the command is issued;
// for PlayerLeft it no longer contains the departed player.
type RoundCommand struct {
	Type     RoundCommandType
	Now      time.Time
	Players  []Player
	PlayerID string
	NextMap  string // winner of the map vote, used by Tick out of VOTING
}

type RoundEventType string

const (
	EvtCountdownStarted RoundEventType = "CountdownStarted"
	EvtRoundStarting    RoundEventType = "RoundStarting"
	EvtRoundStarted     RoundEventType = "RoundStarted"
	EvtSurvivorKilled   RoundEventType = "SurvivorKilled"
	EvtRoundEnded       RoundEventType = "RoundEnded"
	EvtRoundAborted     RoundEventType = "RoundAborted"
	EvtRoundReset       RoundEventType = "RoundReset"
)

type RoundEvent struct {
	Type     RoundEventType
	PlayerID string // infected for RoundStarted, victim for SurvivorKilled
	NextMap  string // RoundReset only
}

// pickInfected selects the round's infected player. Package var so tests
// can pin the choice.
var pickInfected = func(players []Player) string {
	if len(players) == 0 {
		return ""
	}
	return players[rand.Intn(len(players))].ID
}

// ApplyRound advances the round state machine. Pure: the caller owns all
// side effects (marking records, broadcasting) driven by the returned
// events. An error means the command was rejected and the state is
// unchanged.
func ApplyRound(s RoundState, cmd RoundCommand) ([]RoundEvent, RoundState, error) {
	switch cmd.Type {
	case CmdSummon:
		if s.Phase != PhaseWaiting {
			return nil, s, ErrWrongPhase
		}
		if len(cmd.Players) < s.Rules.MinPlayers {
			return nil, s, ErrNotEnoughPlayers
		}
		next := s
		next.Phase = PhaseCountdown
		next.CountdownEnd = cmd.Now.Add(s.Rules.Countdown)
		return []RoundEvent{{Type: EvtCountdownStarted}}, next, nil

	case CmdTick:
		return applyTick(s, cmd)

	case CmdPlayerLeft:
		return applyPlayerLeft(s, cmd)

	case CmdKillSurvivor:
		if s.Phase != PhasePlaying {
			return nil, s, ErrWrongPhase
		}
		events := []RoundEvent{{Type: EvtSurvivorKilled, PlayerID: cmd.PlayerID}}
		next := s
		if !anySurvivorsLeft(cmd.Players, cmd.PlayerID) {
			next.Phase = PhaseVoting
			next.CountdownEnd = cmd.Now.Add(s.Rules.Voting)
			events = append(events, RoundEvent{Type: EvtRoundEnded})
		}
		return events, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyTick(s RoundState, cmd RoundCommand) ([]RoundEvent, RoundState, error) {
	switch s.Phase {
	case PhaseCountdown, PhaseStarting:
		if len(cmd.Players) < s.Rules.MinPlayers {
			return []RoundEvent{{Type: EvtRoundAborted}}, abort(s), nil
		}
		if cmd.Now.Before(s.CountdownEnd) {
			return nil, s, nil
		}
		next := s
		if s.Phase == PhaseCountdown {
			next.Phase = PhaseStarting
			next.CountdownEnd = cmd.Now.Add(s.Rules.StartingDelay)
			return []RoundEvent{{Type: EvtRoundStarting}}, next, nil
		}
		infected := pickInfected(cmd.Players)
		if infected == "" {
			return []RoundEvent{{Type: EvtRoundAborted}}, abort(s), nil
		}
		next.Phase = PhasePlaying
		next.CountdownEnd = time.Time{}
		next.InfectedID = infected
		return []RoundEvent{{Type: EvtRoundStarted, PlayerID: infected}}, next, nil

	case PhaseVoting:
		if cmd.Now.Before(s.CountdownEnd) {
			return nil, s, nil
		}
		next := abort(s)
		next.NextMap = cmd.NextMap
		return []RoundEvent{{Type: EvtRoundReset, NextMap: cmd.NextMap}}, next, nil

	default:
		// WAITING and PLAYING have no timer.
		return nil, s, nil
	}
}

func applyPlayerLeft(s RoundState, cmd RoundCommand) ([]RoundEvent, RoundState, error) {
	switch s.Phase {
	case PhaseCountdown, PhaseStarting, PhaseVoting:
		if len(cmd.Players) < s.Rules.MinPlayers {
			return []RoundEvent{{Type: EvtRoundAborted}}, abort(s), nil
		}
		return nil, s, nil

	case PhasePlaying:
		// An infected player disconnecting mid-round leaves no hunter:
		// resolve by aborting rather than reassigning.
		if cmd.PlayerID == s.InfectedID || len(cmd.Players) < s.Rules.MinPlayers {
			return []RoundEvent{{Type: EvtRoundAborted}}, abort(s), nil
		}
		if !anySurvivorsLeft(cmd.Players, "") {
			next := s
			next.Phase = PhaseVoting
			next.CountdownEnd = cmd.Now.Add(s.Rules.Voting)
			return []RoundEvent{{Type: EvtRoundEnded}}, next, nil
		}
		return nil, s, nil

	default:
		return nil, s, nil
	}
}

func abort(s RoundState) RoundState {
	next := s
	next.Phase = PhaseWaiting
	next.CountdownEnd = time.Time{}
	next.InfectedID = ""
	return next
}

// anySurvivorsLeft checks for a living non-infected player, excluding the
// one being killed by the in-flight command.
func anySurvivorsLeft(players []Player, excludeID string) bool {
	for _, p := range players {
		if p.ID == excludeID {
			continue
		}
		if p.Survivor() {
			return true
		}
	}
	return false
}
