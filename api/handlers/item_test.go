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

func newEngineForTest() *resolution.Engine {
	store := resolution.NewMemoryStore()
	return resolution.NewEngine(store.Items(), store.Claims(), store.Threads(), nil)
}

func TestItem_ItemCreateHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	body, _ := json.Marshal(map[string]string{
		"kind":       "found",
		"title":      "Red scarf",
		"category":   "clothing",
		"station":    "central",
		"reporterId": "staff-1",
	})
	req, err := http.NewRequest("POST", "/api/v1/item", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemCreateHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var created models.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, models.ItemStatusListed, created.Status)
	assert.False(t, created.ID.IsZero())
}

func TestItem_ItemCreateHandlerValidation(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	body, _ := json.Marshal(map[string]string{"kind": "found", "reporterId": "staff-1"})
	req, _ := http.NewRequest("POST", "/api/v1/item", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestItem_ItemByIDHandlerNotFound(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	req, _ := http.NewRequest("GET", "/api/v1/item/64b0c3f9a1b2c3d4e5f60718", nil)
	req = mux.SetURLVars(req, map[string]string{"item_id": "64b0c3f9a1b2c3d4e5f60718"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestItem_ItemHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	_, err := engine.CreateItem(context.Background(), &models.Item{
		Kind: models.ItemKindFound, Title: "Umbrella", ReporterID: "staff-1", Station: "central",
	})
	require.NoError(t, err)
	_, err = engine.CreateItem(context.Background(), &models.Item{
		Kind: models.ItemKindLost, Title: "Backpack", ReporterID: "rider-7", Station: "north",
	})
	require.NoError(t, err)

	httpReq, _ := http.NewRequest("GET", "/api/v1/items?kind=found&limit=10&page=0", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemHandler).ServeHTTP(rr, httpReq)

	require.Equal(t, http.StatusOK, rr.Code)

	var items []models.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Umbrella", items[0].Title)
}

func TestItem_ItemSelfResolveHandler(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	item, err := engine.CreateItem(context.Background(), &models.Item{
		Kind: models.ItemKindLost, Title: "Backpack", ReporterID: "rider-7",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"ownerId": "rider-7"})
	httpReq, _ := http.NewRequest("POST", "/api/v1/item/"+item.ID.Hex()+"/self-resolve", bytes.NewReader(body))
	httpReq = mux.SetURLVars(httpReq, map[string]string{"item_id": item.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemSelfResolveHandler).ServeHTTP(rr, httpReq)

	require.Equal(t, http.StatusOK, rr.Code)

	var resolved models.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resolved))
	assert.Equal(t, models.ItemStatusResolved, resolved.Status)
}

func TestItem_ItemSelfResolveHandlerWrongOwner(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	item, err := engine.CreateItem(context.Background(), &models.Item{
		Kind: models.ItemKindLost, Title: "Backpack", ReporterID: "rider-7",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"ownerId": "someone-else"})
	httpReq, _ := http.NewRequest("POST", "/api/v1/item/"+item.ID.Hex()+"/self-resolve", bytes.NewReader(body))
	httpReq = mux.SetURLVars(httpReq, map[string]string{"item_id": item.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemSelfResolveHandler).ServeHTTP(rr, httpReq)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestItem_ItemDeleteHandlerConflict(t *testing.T) {
	engine := newEngineForTest()
	h := handlers.Item{Engine: engine}

	item, err := engine.CreateItem(context.Background(), &models.Item{
		Kind: models.ItemKindFound, Title: "Umbrella", ReporterID: "staff-1",
	})
	require.NoError(t, err)
	_, err = engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	httpReq, _ := http.NewRequest("DELETE", "/api/v1/item/"+item.ID.Hex(), nil)
	httpReq = mux.SetURLVars(httpReq, map[string]string{"item_id": item.ID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ItemDeleteHandler).ServeHTTP(rr, httpReq)

	assert.Equal(t, http.StatusConflict, rr.Code)
}
