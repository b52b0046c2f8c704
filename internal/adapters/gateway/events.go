package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"supplywatch/pkg/domain"
)

// SSE event names shared with the dashboard client.
const (
	sseRoomUpdate   = "room_update"
	sseSupplyUpdate = "supply_update"
)

type roomPayload struct {
	Kind domain.EventKind `json:"kind"`
	domain.Room
}

type deletedPayload struct {
	Kind    domain.EventKind `json:"kind"`
	Deleted string           `json:"deleted"`
	Room    domain.Room      `json:"room"`
}

type supplyPayload struct {
	Kind     domain.EventKind `json:"kind"`
	RoomID   string           `json:"room_id"`
	RoomName string           `json:"room_name"`
	Item     string           `json:"item"`
	Status   domain.Status    `json:"status"`
}

// encodeEvent returns the SSE event name and JSON payload for a change event.
func encodeEvent(event domain.ChangeEvent) (string, []byte, error) {
	var (
		name    = sseRoomUpdate
		payload any
	)
	switch ev := event.(type) {
	case domain.RoomCreated:
		payload = roomPayload{Kind: ev.Kind(), Room: ev.Room}
	case domain.RoomUpdated:
		payload = roomPayload{Kind: ev.Kind(), Room: ev.Room}
	case domain.RoomDeleted:
		payload = deletedPayload{Kind: ev.Kind(), Deleted: ev.Room.ID, Room: ev.Room}
	case domain.SupplyStatusChanged:
		name = sseSupplyUpdate
		payload = supplyPayload{Kind: ev.Kind(), RoomID: ev.Room, RoomName: ev.RoomName, Item: ev.Item, Status: ev.Status}
	default:
		return "", nil, fmt.Errorf("unsupported event %T", event)
	}
	data, err := json.Marshal(payload)
	return name, data, err
}

// handleEvents streams change events until the client goes away or the
// subscription is closed. Clients fetch /api/rooms after connecting; nothing
// emitted earlier is replayed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.events == nil {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	sub := h.events.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, ": connected %s\n\n", sub.ID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				h.logger.Debug("event stream closed by broadcaster", "subscriber", sub.ID)
				return
			}
			name, data, err := encodeEvent(event)
			if err != nil {
				h.logger.Error("encode change event", "kind", event.Kind(), "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
