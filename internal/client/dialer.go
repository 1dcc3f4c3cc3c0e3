package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/types"
)

const reconnectBackoff = 2 * time.Second

// Dialer keeps a client connected to one room, feeding every server
// message into the store. A dropped connection is retried with backoff;
// each reconnect is a brand new identity, so the store is reset first.
type Dialer struct {
	url      string
	nickname string
	store    *Store
	log      *zap.Logger
	outgoing chan types.ClientMessage
}

func NewDialer(serverURL, roomID, nickname string, store *Store, log *zap.Logger) *Dialer {
	return &Dialer{
		url:      fmt.Sprintf("%s/ws?room=%s", serverURL, roomID),
		nickname: nickname,
		store:    store,
		log:      log,
		outgoing: make(chan types.ClientMessage, 64),
	}
}

// Run dials and pumps until the context ends.
func (d *Dialer) Run(ctx context.Context) error {
	for {
		if err := d.session(ctx); err != nil {
			d.log.Warn("connection lost", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (d *Dialer) session(ctx context.Context) error {
	d.store.Reset()

	conn, _, err := websocket.Dial(ctx, d.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := d.write(ctx, conn, types.ClientMessage{Type: types.MsgJoin, Nickname: d.nickname}); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-sessionCtx.Done():
				return
			case msg := <-d.outgoing:
				if err := d.write(sessionCtx, conn, msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(sessionCtx)
		if err != nil {
			return err
		}
		var sm types.ServerMessage
		if err := json.Unmarshal(data, &sm); err != nil {
			continue
		}
		d.store.Apply(sm)
	}
}

func (d *Dialer) write(ctx context.Context, conn *websocket.Conn, msg types.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// SendMove queues this frame's transform. The physics layer computes the
// position locally; the server relays it as-is.
func (d *Dialer) SendMove(pos game.Vec3, rot game.Quat, moving, running bool) {
	d.send(types.ClientMessage{
		Type:      types.MsgMove,
		Position:  &pos,
		Rotation:  &rot,
		IsMoving:  moving,
		IsRunning: running,
	})
}

func (d *Dialer) SendAttack() {
	d.send(types.ClientMessage{Type: types.MsgAttack})
}

func (d *Dialer) SendVote(optionID string) {
	d.send(types.ClientMessage{Type: types.MsgVote, OptionID: optionID})
}

func (d *Dialer) SendChat(text string) {
	d.send(types.ClientMessage{Type: types.MsgChat, Text: text})
}

func (d *Dialer) SendSignal(target string, data json.RawMessage) {
	d.send(types.ClientMessage{Type: types.MsgSignal, Target: target, Data: data})
}

func (d *Dialer) RequestRoundStart() {
	d.send(types.ClientMessage{Type: types.MsgRequestRoundStart})
}

// send drops on a full queue rather than block a render frame; the next
// frame's update supersedes it anyway.
func (d *Dialer) send(msg types.ClientMessage) {
	select {
	case d.outgoing <- msg:
	default:
	}
}
