package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"supplywatch/internal/core"
	"supplywatch/pkg/domain"
)

const maxBodyBytes = 1 << 20

type supplyRequest struct {
	Name   string `json:"name" validate:"max=100"`
	Status string `json:"status" validate:"max=64"`
}

type createRoomRequest struct {
	Name     *string                  `json:"name" validate:"omitempty,max=200"`
	Type     *string                  `json:"type" validate:"omitempty,max=100"`
	Location *string                  `json:"location" validate:"omitempty,max=200"`
	Supplies map[string]supplyRequest `json:"supplies" validate:"omitempty,dive,keys,required,max=64,endkeys"`
}

type updateRoomRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Type     *string `json:"type" validate:"omitempty,max=100"`
	Location *string `json:"location" validate:"omitempty,max=200"`
}

// decodeBody reads a JSON object; an empty body decodes as {}.
func decodeBody(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (h *Handler) validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field, _, _ := strings.Cut(verrs[0].Field(), "[")
		return fmt.Sprintf("Invalid %s", field)
	}
	return "Invalid request"
}

// sortRooms orders rooms by creation time, then identifier.
func sortRooms(rooms []domain.Room) {
	slices.SortFunc(rooms, func(a, b domain.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func (h *Handler) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := h.registry.ListRooms()
	sortRooms(rooms)
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, h.validationMessage(err))
		return
	}
	in := core.CreateRoomInput{
		Name:     req.Name,
		Category: req.Type,
		Location: req.Location,
		Supplies: lo.MapValues(req.Supplies, func(s supplyRequest, _ string) domain.SupplyItem {
			return domain.SupplyItem{Name: s.Name, Status: domain.Status(s.Status)}
		}),
	}
	room, err := h.registry.CreateRoom(r.Context(), in)
	if err != nil {
		h.writeRegistryError(w, err, nil)
		return
	}
	h.logger.Info("room created", "room_id", room.ID, "name", room.Name)
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handler) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, h.validationMessage(err))
		return
	}
	room, err := h.registry.UpdateRoom(r.Context(), id, core.UpdateRoomInput{
		Name:     req.Name,
		Category: req.Type,
		Location: req.Location,
	})
	if err != nil {
		h.writeRegistryError(w, err, nil)
		return
	}
	h.logger.Info("room updated", "room_id", id)
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, err := h.registry.DeleteRoom(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, err, nil)
		return
	}
	h.logger.Info("room deleted", "room_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": room})
}

func (h *Handler) handleResolveSupply(w http.ResponseWriter, r *http.Request) {
	id, key := chi.URLParam(r, "id"), chi.URLParam(r, "key")
	if _, err := h.registry.ResolveSupply(r.Context(), id, key); err != nil {
		extra := map[string]any{"room_id": id}
		if errors.Is(err, domain.ErrSupplyNotFound) {
			extra = map[string]any{"supply_key": key}
		}
		h.writeRegistryError(w, err, extra)
		return
	}
	h.logger.Info("supply resolved", "room_id", id, "item", key)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
