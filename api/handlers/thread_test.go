package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrofound/lostfound-api/api/handlers"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

func seedThread(t *testing.T, engine *resolution.Engine) *models.Thread {
	t.Helper()
	thread, err := engine.CreateSupportThread(context.Background(), "rider-7", "Where is my umbrella?", "")
	require.NoError(t, err)
	return thread
}

func TestThread_ThreadCreateHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}

	body, _ := json.Marshal(map[string]string{
		"userId":  "rider-7",
		"subject": "Where is my umbrella?",
	})
	req, _ := http.NewRequest("POST", "/api/v1/thread", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadCreateHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var created models.Thread
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, models.ThreadStatusOpen, created.Status)
	assert.Equal(t, models.ThreadTypeSupport, created.Type)
}

func TestThread_ThreadCreateHandlerValidation(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}

	body, _ := json.Marshal(map[string]string{"userId": "rider-7"})
	req, _ := http.NewRequest("POST", "/api/v1/thread", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestThread_ThreadMessageHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}
	thread := seedThread(t, engine)

	body, _ := json.Marshal(map[string]string{
		"senderId":   "staff-9",
		"senderRole": "admin",
		"body":       "We found a black umbrella at central station.",
	})
	req, _ := http.NewRequest("POST", "/api/v1/thread/"+thread.ID.Hex()+"/message", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"thread_id": thread.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadMessageHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, models.SenderRoleAdmin, msg.SenderRole)
	assert.NotEmpty(t, msg.ID)
}

func TestThread_ThreadMessageHandlerClosedThread(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}
	thread := seedThread(t, engine)

	require.NoError(t, engine.CloseThread(context.Background(), thread.ID.Hex()))

	body, _ := json.Marshal(map[string]string{
		"senderId":   "rider-7",
		"senderRole": "user",
		"body":       "hello?",
	})
	req, _ := http.NewRequest("POST", "/api/v1/thread/"+thread.ID.Hex()+"/message", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"thread_id": thread.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestThread_ThreadByIDHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}
	thread := seedThread(t, engine)

	req, _ := http.NewRequest("GET", "/api/v1/thread/"+thread.ID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"thread_id": thread.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadByIDHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got models.Thread
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, "rider-7", got.UserID)
}

func TestThread_ThreadsByUserIDHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}
	seedThread(t, engine)

	req, _ := http.NewRequest("GET", "/api/v1/threads/user/rider-7", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": "rider-7"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ThreadsByUserIDHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var threads []models.Thread
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &threads))
	require.Len(t, threads, 1)
}

func TestThread_ThreadCloseHandlerIdempotent(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Thread{Engine: engine}
	thread := seedThread(t, engine)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("PUT", "/api/v1/thread/"+thread.ID.Hex()+"/close", nil)
		req = mux.SetURLVars(req, map[string]string{"thread_id": thread.ID.Hex()})

		rr := httptest.NewRecorder()
		http.HandlerFunc(h.ThreadCloseHandler).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}
