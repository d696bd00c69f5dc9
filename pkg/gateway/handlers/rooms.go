package handlers

import (
	"net/http"
	"strings"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/gateway/rooms"
)

// RoomsHandler exposes LiveKit room provisioning for voice calls.
type RoomsHandler struct {
	Rooms *rooms.Service
}

type createRoomRequest struct {
	RoomName        string `json:"roomName"`
	MaxParticipants uint32 `json:"maxParticipants,omitempty"`
}

// CreateRoom handles POST /api/create-room.
func (h RoomsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.Rooms.CreateRoom(r.Context(), strings.TrimSpace(req.RoomName), req.MaxParticipants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room":  room.Name,
		"sid":   room.Sid,
		"wsUrl": h.Rooms.WSURL(),
	})
}

type joinRoomRequest struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

// JoinRoom handles POST /api/join-room, minting a scoped access token.
func (h RoomsHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.Rooms.JoinToken(strings.TrimSpace(req.RoomName), strings.TrimSpace(req.Identity))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"wsUrl": h.Rooms.WSURL(),
	})
}

// ListRooms handles GET /api/rooms.
func (h RoomsHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	active, err := h.Rooms.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(active))
	for _, room := range active {
		out = append(out, map[string]any{
			"name":            room.Name,
			"sid":             room.Sid,
			"numParticipants": room.NumParticipants,
			"creationTime":    room.CreationTime,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteRoom handles DELETE /api/rooms/{name}.
func (h RoomsHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("room name is required", "name"))
		return
	}
	if err := h.Rooms.DeleteRoom(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type testRoomRequest struct {
	Identity string `json:"identity,omitempty"`
}

// CreateTestRoom handles POST /api/create-test-room.
func (h RoomsHandler) CreateTestRoom(w http.ResponseWriter, r *http.Request) {
	var req testRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		identity = "test-user"
	}
	room, token, err := h.Rooms.CreateTestRoom(r.Context(), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room":  room.Name,
		"token": token,
		"wsUrl": h.Rooms.WSURL(),
	})
}
