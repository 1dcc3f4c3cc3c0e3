package types

import (
	"encoding/json"

	"github.com/Paseru/jeu-noel-server/internal/game"
)

// Client -> server message types.
const (
	MsgJoin              = "join"
	MsgMove              = "move"
	MsgAttack            = "attack"
	MsgVote              = "vote"
	MsgRequestRoundStart = "requestRoundStart"
	MsgChat              = "chat"
	MsgSignal            = "signal"
)

// Server -> client message types. MsgAttack and MsgChat are relayed in
// both directions.
const (
	MsgWelcome      = "welcome"
	MsgSnapshot     = "snapshot"
	MsgPlayerJoined = "playerJoined"
	MsgPlayerMoved  = "playerMoved"
	MsgPlayerLeft   = "playerLeft"
	MsgPlayerDied   = "playerDied"
	MsgRoundState   = "roundState"
	MsgGatherState  = "gatherState"
	MsgError        = "error"
)

type ClientMessage struct {
	Type      string          `json:"type"`
	Nickname  string          `json:"nickname,omitempty"`
	Position  *game.Vec3      `json:"position,omitempty"`
	Rotation  *game.Quat      `json:"rotation,omitempty"`
	IsMoving  bool            `json:"isMoving,omitempty"`
	IsRunning bool            `json:"isRunning,omitempty"`
	OptionID  string          `json:"optionId,omitempty"`
	Text      string          `json:"text,omitempty"`
	Target    string          `json:"target,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RoundInfo is the round state as pushed to clients. CountdownEnd is unix
// milliseconds; clients compute remaining time against their own clock.
type RoundInfo struct {
	Phase        game.Phase `json:"phase"`
	CountdownEnd int64      `json:"countdownEnd,omitempty"`
	InfectedID   string     `json:"infectedId,omitempty"`
	NextMap      string     `json:"nextMap,omitempty"`
}

type GatherInfo struct {
	Status       game.GatherStatus `json:"status"`
	CountdownEnd int64             `json:"countdownEnd,omitempty"`
	Inside       int               `json:"inside"`
	Alive        int               `json:"alive"`
	Total        int               `json:"total"`
}

type ServerMessage struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id,omitempty"`
	From      string                 `json:"from,omitempty"`
	Nickname  string                 `json:"nickname,omitempty"`
	Player    *game.Player           `json:"player,omitempty"`
	Players   map[string]game.Player `json:"players,omitempty"`
	Position  *game.Vec3             `json:"position,omitempty"`
	Rotation  *game.Quat             `json:"rotation,omitempty"`
	IsMoving  bool                   `json:"isMoving,omitempty"`
	IsRunning bool                   `json:"isRunning,omitempty"`
	Round     *RoundInfo             `json:"round,omitempty"`
	Gather    *GatherInfo            `json:"gather,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Data      json.RawMessage        `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}
