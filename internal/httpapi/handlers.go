package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Paseru/jeu-noel-server/internal/hub"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ListRooms returns the static room table with live player counts, for a
// lobby browser.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []hub.RoomInfo, 1)
		h.Inbox() <- hub.ListRooms{Reply: reply}
		infos := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(infos)
	}
}

// RoomQR renders a PNG QR code pointing at the room's join URL, for
// handing a phone-scannable invite to players in the same room.
func RoomQR(h *hub.Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		lookup := make(chan []hub.RoomInfo, 1)
		h.Inbox() <- hub.ListRooms{Reply: lookup}
		found := false
		for _, info := range <-lookup {
			if info.ID == roomID {
				found = true
				break
			}
		}
		if !found {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		url := fmt.Sprintf("%s/?room=%s", publicURL, roomID)
		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
