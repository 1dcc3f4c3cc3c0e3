package room

import (
	"fmt"
	"strings"

	"github.com/Paseru/jeu-noel-server/internal/game"
)

// registry is the authoritative set of connected players for one room.
// Only the room loop touches it, so no locking.
type registry struct {
	players        map[string]*game.Player
	nextCharacter  int
	characterCount int
	joined         int
}

func newRegistry(characterCount int) *registry {
	if characterCount <= 0 {
		characterCount = 1
	}
	return &registry{
		players:        make(map[string]*game.Player),
		characterCount: characterCount,
	}
}

// join creates and stores the record for a new connection. Character
// variants are assigned round-robin from a fixed palette and stay stable
// for the connection's lifetime.
func (reg *registry) join(id, nickname string, m game.MapConfig) game.Player {
	reg.joined++
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = fmt.Sprintf("Player %d", reg.joined)
	}
	p := &game.Player{
		ID:             id,
		Nickname:       nickname,
		Position:       m.Spawn,
		Rotation:       m.SpawnFacing,
		CharacterIndex: reg.nextCharacter,
	}
	reg.nextCharacter = (reg.nextCharacter + 1) % reg.characterCount
	reg.players[id] = p
	return *p
}

// applyMove overwrites the transform fields, last write wins. Position
// and rotation always land together. Unknown ids are a silent no-op:
// a move racing a disconnect is expected, not an error.
func (reg *registry) applyMove(id string, pos game.Vec3, rot game.Quat, moving, running bool) bool {
	p, ok := reg.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	p.Rotation = rot
	p.IsMoving = moving
	p.IsRunning = running
	return true
}

// remove deletes the record. Idempotent.
func (reg *registry) remove(id string) bool {
	if _, ok := reg.players[id]; !ok {
		return false
	}
	delete(reg.players, id)
	return true
}

func (reg *registry) get(id string) (*game.Player, bool) {
	p, ok := reg.players[id]
	return p, ok
}

func (reg *registry) size() int { return len(reg.players) }

// snapshot returns a by-value copy of every record, safe to marshal.
func (reg *registry) snapshot() map[string]game.Player {
	out := make(map[string]game.Player, len(reg.players))
	for id, p := range reg.players {
		out[id] = *p
	}
	return out
}

// setRoles marks the infected player and revives everyone for a new
// round.
func (reg *registry) setRoles(infectedID string) {
	for id, p := range reg.players {
		p.IsDead = false
		p.IsInfected = id == infectedID
	}
}

// clearRoles resets all role flags, used on abort and round reset.
func (reg *registry) clearRoles() {
	for _, p := range reg.players {
		p.IsDead = false
		p.IsInfected = false
	}
}

// list returns the records as a slice for the state machines.
func (reg *registry) list() []game.Player {
	out := make([]game.Player, 0, len(reg.players))
	for _, p := range reg.players {
		out = append(out, *p)
	}
	return out
}
