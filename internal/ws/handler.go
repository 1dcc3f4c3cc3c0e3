package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/hub"
	"github.com/Paseru/jeu-noel-server/internal/room"
	"github.com/Paseru/jeu-noel-server/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	// Liveness guard: clients stream moves every frame, so a connection
	// silent for this long is dead weight holding a registry slot.
	readTimeout = 30 * time.Second
)

// Handler upgrades the connection, waits for the join message, registers
// the client with its room, and then pumps messages both ways. A dropped
// connection is simply a leave; reconnecting yields a new identity.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{ID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Nothing mutates room state until the join message arrives.
		joinMsg, err := readMessage(r.Context(), conn)
		if err != nil || joinMsg.Type != types.MsgJoin {
			_ = writeError(r.Context(), conn, "expected join")
			return
		}

		connID := uuid.NewString()
		out := make(chan []byte, 64)
		joinReply := make(chan game.Player, 1)
		rm.Inbox() <- room.Join{ConnID: connID, Nickname: joinMsg.Nickname, Outbox: out, Reply: joinReply}
		<-joinReply
		defer func() { rm.Inbox() <- room.Leave{ConnID: connID} }()

		log.Debug("connection open", zap.String("id", connID), zap.String("room", roomID))

		// Writer goroutine: drains the room's outbox until it closes.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop.
		for {
			readCtx, readCancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(readCtx)
			readCancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("connection closed", zap.String("id", connID), zap.Error(err))
				}
				return
			}

			// Malformed payloads are rejected here; state stays untouched
			// and the next frame's message supersedes naturally.
			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeError(r.Context(), conn, "bad json")
				continue
			}

			msg, ok := toRoomMsg(connID, cm)
			if !ok {
				_ = writeError(r.Context(), conn, "unknown type")
				continue
			}
			rm.Inbox() <- msg
		}
	}
}

func readMessage(ctx context.Context, conn *websocket.Conn) (types.ClientMessage, error) {
	var cm types.ClientMessage
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		return cm, err
	}
	if err := json.Unmarshal(data, &cm); err != nil {
		return cm, err
	}
	return cm, nil
}

func writeError(ctx context.Context, conn *websocket.Conn, text string) error {
	payload, _ := json.Marshal(types.ServerMessage{Type: types.MsgError, Error: text})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// toRoomMsg maps a decoded client message onto a room inbox message.
// Malformed or unknown messages are rejected here, before any state is
// touched.
func toRoomMsg(connID string, cm types.ClientMessage) (room.Msg, bool) {
	switch cm.Type {
	case types.MsgMove:
		if cm.Position == nil || cm.Rotation == nil {
			return nil, false
		}
		return room.Move{
			ConnID:    connID,
			Position:  *cm.Position,
			Rotation:  *cm.Rotation,
			IsMoving:  cm.IsMoving,
			IsRunning: cm.IsRunning,
		}, true
	case types.MsgAttack:
		return room.AttackIntent{ConnID: connID}, true
	case types.MsgVote:
		if cm.OptionID == "" {
			return nil, false
		}
		return room.Vote{ConnID: connID, OptionID: cm.OptionID}, true
	case types.MsgRequestRoundStart:
		return room.RequestRoundStart{ConnID: connID}, true
	case types.MsgChat:
		if cm.Text == "" {
			return nil, false
		}
		return room.Chat{ConnID: connID, Text: cm.Text}, true
	case types.MsgSignal:
		if cm.Target == "" {
			return nil, false
		}
		return room.Signal{From: connID, Target: cm.Target, Data: cm.Data}, true
	default:
		return nil, false
	}
}
