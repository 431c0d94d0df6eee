package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/rest"
)

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	listings, err := c.roomService.ListRooms(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to list rooms", "error", err)
		rest.WriteError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": listings})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetRoom(r.Context(), roomId)
	if errors.Is(err, room.ErrRoomNotFound) {
		rest.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get room", "room_id", roomId, "error", err)
		rest.WriteError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snapshot})
}
