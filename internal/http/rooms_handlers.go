package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Absterrg0/Excalidraw/internal/store"
	"github.com/Absterrg0/Excalidraw/pkg/auth"
)

type RoomsAPI struct{ DB *store.Postgres }

type createRoomReq struct {
	Slug string `json:"slug"`
}

type roomResp struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	HostID    string    `json:"hostId"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatResp struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create registers a new room hosted by the authenticated user
func (a *RoomsAPI) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	room, err := a.DB.CreateRoom(r.Context(), req.Slug, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			http.Error(w, "room with this slug already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, roomResp{ID: room.ID, Slug: room.Slug, HostID: room.HostID, CreatedAt: room.CreatedAt})
}

// Get looks up a room by slug
func (a *RoomsAPI) Get(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.Error(w, "slug required", http.StatusBadRequest)
		return
	}

	room, err := a.DB.GetRoomBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, roomResp{ID: room.ID, Slug: room.Slug, HostID: room.HostID, CreatedAt: room.CreatedAt})
}

// Chats returns recent history for a room, oldest first. Live relay
// never replays history; clients bootstrap their canvas from here.
func (a *RoomsAPI) Chats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	chats, err := a.DB.ListChats(r.Context(), id, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]chatResp, 0, len(chats))
	for _, c := range chats {
		resp = append(resp, chatResp{ID: c.ID, RoomID: c.RoomID, UserID: c.UserID, Message: c.Message, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, resp)
}
