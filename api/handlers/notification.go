package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/api"
	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

// Notification serves the notification inbox
type Notification struct {
	DB databases.NotificationDatabase
}

// NotificationsByUserIDHandler returns a user's notifications, newest first
func (n Notification) NotificationsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := n.DB.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		config.ErrorStatus("failed to get notifications", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Notification{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// NotificationMarkReadHandler marks one notification as read
func (n Notification) NotificationMarkReadHandler(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["notification_id"]

	nID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := n.DB.UpdateOne(ctx, bson.M{"_id": nID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		config.ErrorStatus("failed to mark notification read", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("notification not found", http.StatusNotFound, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"read": true}`))
}

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events streams engine transitions over a websocket
type Events struct {
	Engine *resolution.Engine
}

// StreamHandler subscribes the connection to the engine's change feed. A
// thread_id (path var or query param) narrows the stream to one conversation.
func (e Events) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	threadID := mux.Vars(r)["thread_id"]
	if threadID == "" {
		threadID = r.URL.Query().Get("thread_id")
	}

	var filter resolution.EventFilter
	if threadID != "" {
		filter = func(ev resolution.Event) bool { return ev.ThreadID == threadID }
	}

	events, unsubscribe := e.Engine.Events().Subscribe(filter)
	defer unsubscribe()

	// the reader goroutine notices the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.Close()
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				conn.Close()
				return
			}
		case <-done:
			conn.Close()
			return
		}
	}
}
