package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/api"
	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/config"
	"github.com/consulthub/consulthub-api/databases"
	"github.com/consulthub/consulthub-api/models"
)

// ChatQueries is the read side of the gateway the REST api exposes
type ChatQueries interface {
	Stats(ctx context.Context) (models.ChatStats, error)
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
	OnlineUsers(ctx context.Context) (map[string]string, error)
}

// Chat exported for testing purposes
type Chat struct {
	Gateway  ChatQueries
	Presence databases.PresenceStore
}

// StatsHandler returns room, member and connection counts
func (c Chat) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := c.Gateway.Stats(ctx)
	if err != nil {
		config.ErrorStatus("failed to get chat stats", http.StatusServiceUnavailable, w, err)
		return
	}
	writeJSON(w, stats)
}

// RoomMembersHandler lists the users currently joined to a room
func (c Chat) RoomMembersHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	zap.S().Debugf("roomId: %v", roomID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	members, err := c.Gateway.RoomMembers(ctx, roomID)
	if err != nil {
		config.ErrorStatus("failed to get room members", http.StatusServiceUnavailable, w, err)
		return
	}
	// the frontend expects an array, never null
	if members == nil {
		members = []string{}
	}
	writeJSON(w, models.RoomMembersResponse{RoomID: roomID, Members: members})
}

// ConsultationRoomHandler returns the room name clients join for a consultation
func (c Chat) ConsultationRoomHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultationId"]
	writeJSON(w, models.RoomResponse{
		ConsultationID: consultationID,
		RoomID:         chat.RoomID(consultationID),
	})
}

// PresenceHandler reports whether a user is online. The shared store is asked
// first so that users connected to other instances are found; without one the
// local gateway answers.
func (c Chat) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	resp := models.PresenceResponse{UserID: userID}
	if _, local := c.Presence.(databases.NoopPresence); c.Presence == nil || local {
		online, err := c.Gateway.OnlineUsers(ctx)
		if err != nil {
			config.ErrorStatus("failed to get online users", http.StatusServiceUnavailable, w, err)
			return
		}
		resp.ConnectionID, resp.Online = online[userID]
	} else {
		connID, ok, err := c.Presence.Lookup(ctx, userID)
		if err != nil {
			config.ErrorStatus("failed to look up presence", http.StatusServiceUnavailable, w, err)
			return
		}
		resp.ConnectionID, resp.Online = connID, ok
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
