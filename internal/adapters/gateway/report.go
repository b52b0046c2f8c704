package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"supplywatch/pkg/domain"
)

// reportRequest is the device payload. Status defaults to "unknown".
type reportRequest struct {
	RoomID string  `json:"room_id" validate:"required"`
	Item   string  `json:"item" validate:"required"`
	Status *string `json:"status"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeBody(r, &req); err != nil {
		// Malformed payloads are handled as an empty report.
		req = reportRequest{}
	}
	var verrs validator.ValidationErrors
	_ = errors.As(h.validate.Struct(req), &verrs)
	failed := func(field string) bool {
		return lo.ContainsBy(verrs, func(fe validator.FieldError) bool { return fe.Field() == field })
	}
	if failed("room_id") {
		writeError(w, http.StatusBadRequest, "Invalid room_id")
		return
	}
	if _, err := h.registry.GetRoom(req.RoomID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid room_id")
		return
	}
	if failed("item") {
		writeError(w, http.StatusBadRequest, "Item required")
		return
	}
	status := domain.StatusUnknown
	if req.Status != nil {
		status = domain.Status(*req.Status)
	}
	room, err := h.registry.ReportSupply(r.Context(), req.RoomID, req.Item, status)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		// deleted between lookup and report
		writeError(w, http.StatusBadRequest, "Invalid room_id")
		return
	case errors.Is(err, domain.ErrSupplyNotFound):
		writeError(w, http.StatusBadRequest, "Invalid item")
		return
	case err != nil:
		h.writeRegistryError(w, err, nil)
		return
	}
	h.logger.Info("supply reported", "room_id", room.ID, "item", req.Item, "status", status)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "room": room.Name})
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.GetRoom(chi.URLParam(r, "id"))
	if err != nil {
		h.writeRegistryError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, room)
}
