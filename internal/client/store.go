package client

import (
	"sync"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/types"
)

// Store is the client-side mirror of the server's registry and round
// state. Message application is synchronous and last-write-wins; the
// rendering tick reads snapshots concurrently, so a mutex guards the
// maps. The store never assumes messages arrive in order: a move for an
// unknown id is dropped, a duplicate join overwrites, a leave for an
// unknown id is a no-op.
type Store struct {
	mu      sync.RWMutex
	selfID  string
	players map[string]game.Player
	round   types.RoundInfo
	gather  types.GatherInfo
	subs    []func()
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]game.Player),
		round:   types.RoundInfo{Phase: game.PhaseWaiting},
		gather:  types.GatherInfo{Status: game.GatherIdle},
	}
}

// Subscribe registers a change notification hook for the render/UI layer.
// Callbacks run on the message-application goroutine and must not block.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Apply merges one server message into the mirror.
func (s *Store) Apply(msg types.ServerMessage) {
	s.mu.Lock()

	switch msg.Type {
	case types.MsgWelcome:
		s.selfID = msg.ID
		if msg.Player != nil {
			s.players[msg.Player.ID] = *msg.Player
		}

	case types.MsgSnapshot:
		s.players = make(map[string]game.Player, len(msg.Players))
		for id, p := range msg.Players {
			s.players[id] = p
		}
		if msg.Round != nil {
			s.round = *msg.Round
		}
		if msg.Gather != nil {
			s.gather = *msg.Gather
		}

	case types.MsgPlayerJoined:
		if msg.Player != nil {
			// Overlapping join for a known id is a refresh, not an error.
			s.players[msg.Player.ID] = *msg.Player
		}

	case types.MsgPlayerMoved:
		p, ok := s.players[msg.ID]
		if !ok || msg.Position == nil || msg.Rotation == nil {
			// Join should have preceded this; if it didn't, drop it.
			break
		}
		p.Position = *msg.Position
		p.Rotation = *msg.Rotation
		p.IsMoving = msg.IsMoving
		p.IsRunning = msg.IsRunning
		s.players[msg.ID] = p

	case types.MsgPlayerLeft:
		delete(s.players, msg.ID)

	case types.MsgPlayerDied:
		if p, ok := s.players[msg.ID]; ok {
			p.IsDead = true
			s.players[msg.ID] = p
		}

	case types.MsgRoundState:
		if msg.Round != nil {
			s.round = *msg.Round
			s.syncRoles()
		}

	case types.MsgGatherState:
		if msg.Gather != nil {
			s.gather = *msg.Gather
		}
	}

	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// syncRoles keeps the per-player role flags consistent with the round
// state push. Caller holds the lock.
func (s *Store) syncRoles() {
	switch s.round.Phase {
	case game.PhasePlaying:
		for id, p := range s.players {
			p.IsInfected = id == s.round.InfectedID
			s.players[id] = p
		}
	case game.PhaseWaiting:
		for id, p := range s.players {
			p.IsInfected = false
			p.IsDead = false
			s.players[id] = p
		}
	}
}

// Reset clears the mirror, used when the dialer reconnects under a fresh
// identity.
func (s *Store) Reset() {
	s.mu.Lock()
	s.selfID = ""
	s.players = make(map[string]game.Player)
	s.round = types.RoundInfo{Phase: game.PhaseWaiting}
	s.gather = types.GatherInfo{Status: game.GatherIdle}
	s.mu.Unlock()
}

func (s *Store) SelfID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

// Snapshot returns a read model copy for the rendering tick.
func (s *Store) Snapshot() (map[string]game.Player, types.RoundInfo, types.GatherInfo) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make(map[string]game.Player, len(s.players))
	for id, p := range s.players {
		players[id] = p
	}
	return players, s.round, s.gather
}
