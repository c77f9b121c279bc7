package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

// Thread exported for testing purposes
type Thread struct {
	Engine *resolution.Engine
}

type threadCreateRequest struct {
	UserID        string `json:"userId"`
	Subject       string `json:"subject"`
	RelatedItemID string `json:"relatedItemId,omitempty"`
}

type messageRequest struct {
	SenderID      string `json:"senderId"`
	SenderRole    string `json:"senderRole"`
	Body          string `json:"body"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// ThreadCreateHandler opens a support conversation for a user
func (t Thread) ThreadCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req threadCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode thread", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := t.Engine.CreateSupportThread(r.Context(), req.UserID, req.Subject, req.RelatedItemID)
	if err != nil {
		config.ErrorStatus("failed to create thread", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ThreadByIDHandler returns a thread with its full message history
func (t Thread) ThreadByIDHandler(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	zap.S().Debugf("thread_id: %v", threadID)

	dbResp, err := t.Engine.GetThread(r.Context(), threadID)
	if err != nil {
		config.ErrorStatus("failed to get thread by ID", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ThreadsByUserIDHandler returns all threads the given user participates in
func (t Thread) ThreadsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	dbResp, err := t.Engine.ListThreadsByUser(r.Context(), userID)
	if err != nil {
		config.ErrorStatus("failed to get threads by user ID", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ThreadMessageHandler appends a message to an open thread
func (t Thread) ThreadMessageHandler(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode message", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := t.Engine.AppendMessage(r.Context(), threadID, req.SenderID,
		models.SenderRole(req.SenderRole), req.Body, req.AttachmentURL)
	if err != nil {
		config.ErrorStatus("failed to append message", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ThreadCloseHandler closes a thread. Closing an already closed thread is a
// no-op.
func (t Thread) ThreadCloseHandler(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	if err := t.Engine.CloseThread(r.Context(), threadID); err != nil {
		config.ErrorStatus("failed to close thread", resolution.StatusFor(err), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"closed": true}`))
}
