package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/room"
)

type HubMsg interface{ isHubMsg() }

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type ListRooms struct {
	Reply chan []RoomInfo
}

type ShutdownHub struct{}

func (GetRoom) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// RoomInfo is what the HTTP room list returns.
type RoomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// Hub owns the room directory. Rooms come from the static map table at
// construction; nothing creates or destroys them at runtime.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	order  []string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts room.Options, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, m := range game.Maps {
		o := opts
		o.Map = m
		h.rooms[m.ID] = room.New(ctx, o, log)
		h.order = append(h.order, m.ID)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case ListRooms:
				infos := make([]RoomInfo, 0, len(h.order))
				for _, id := range h.order {
					rm := h.rooms[id]
					reply := make(chan room.View, 1)
					rm.Inbox() <- room.GetView{Reply: reply}
					view := <-reply
					mc, _ := game.MapByID(id)
					infos = append(infos, RoomInfo{ID: id, Name: mc.Name, Players: view.NumClients})
				}
				msg.Reply <- infos

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}
