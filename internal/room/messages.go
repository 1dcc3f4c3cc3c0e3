package room

import (
	"encoding/json"

	"github.com/Paseru/jeu-noel-server/internal/game"
)

type Msg interface{ isRoomMsg() }

// Join registers a connection. The room replies with the accepted record
// and immediately queues the full snapshot on the outbox.
type Join struct {
	ConnID   string
	Nickname string
	Outbox   chan []byte // pre-marshaled frames for this client
	Reply    chan game.Player
}

// Leave is issued on disconnect. Idempotent.
type Leave struct{ ConnID string }

// Move is a transform update from one client.
type Move struct {
	ConnID    string
	Position  game.Vec3
	Rotation  game.Quat
	IsMoving  bool
	IsRunning bool
}

// AttackIntent starts the infected's attack windup; resolution is
// server-side on the tick.
type AttackIntent struct{ ConnID string }

// Vote casts or replaces a map vote during VOTING.
type Vote struct {
	ConnID   string
	OptionID string
}

// RequestRoundStart is the manual trigger path, bypassing the gather
// zone. Subject to the same phase and player-count rules.
type RequestRoundStart struct{ ConnID string }

// Chat is relayed to everyone including the sender.
type Chat struct {
	ConnID string
	Text   string
}

// Signal is an opaque voice-signaling payload forwarded to one target.
type Signal struct {
	From   string
	Target string
	Data   json.RawMessage
}

// GetView reflects internal state without data races. Test-only.
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()              {}
func (Leave) isRoomMsg()             {}
func (Move) isRoomMsg()              {}
func (AttackIntent) isRoomMsg()      {}
func (Vote) isRoomMsg()              {}
func (RequestRoundStart) isRoomMsg() {}
func (Chat) isRoomMsg()              {}
func (Signal) isRoomMsg()            {}
func (GetView) isRoomMsg()           {}
func (Shutdown) isRoomMsg()          {}

type View struct {
	NumClients int
	Players    map[string]game.Player
	Round      game.RoundState
	Gather     game.GatherState
	Votes      int
}
