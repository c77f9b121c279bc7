package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

var (
	// Page denotes the starting Page for pagination results
	Page = 0
)

// Item exported for testing purposes
type Item struct {
	Engine *resolution.Engine
}

type markMatchRequest struct {
	FoundItemID string `json:"foundItemId"`
}

type selfResolveRequest struct {
	OwnerID string `json:"ownerId"`
}

// ItemCreateHandler files a lost report or registers found property
func (i Item) ItemCreateHandler(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		config.ErrorStatus("failed to decode item", http.StatusBadRequest, w, err)
		return
	}

	created, err := i.Engine.CreateItem(r.Context(), &item)
	if err != nil {
		config.ErrorStatus("failed to create item", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(created)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ItemHandler returns items matching the query filters
func (i Item) ItemHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	filter := resolution.ItemFilter{
		Kind:       models.ItemKind(r.URL.Query().Get("kind")),
		Status:     models.ItemStatus(r.URL.Query().Get("status")),
		Category:   r.URL.Query().Get("category"),
		Station:    r.URL.Query().Get("station"),
		ReporterID: r.URL.Query().Get("reporter_id"),
		Limit:      Limit,
		Page:       Page,
	}

	dbResp, err := i.Engine.ListItems(r.Context(), filter)
	if err != nil {
		config.ErrorStatus("failed to get items", resolution.StatusFor(err), w, err)
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

// ItemByIDHandler returns an item by ID
func (i Item) ItemByIDHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	zap.S().Debugf("item_id: %v", itemID)

	dbResp, err := i.Engine.GetItem(r.Context(), itemID)
	if err != nil {
		config.ErrorStatus("failed to get item by ID", resolution.StatusFor(err), w, err)
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

// ItemDeleteHandler removes an item that has no active claims
func (i Item) ItemDeleteHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	if err := i.Engine.DeleteItem(r.Context(), itemID); err != nil {
		config.ErrorStatus("failed to delete item", resolution.StatusFor(err), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// ItemMarkMatchHandler links a lost report to a found listing
func (i Item) ItemMarkMatchHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	var req markMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode match request", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := i.Engine.MarkMatch(r.Context(), itemID, req.FoundItemID)
	if err != nil {
		config.ErrorStatus("failed to mark match", resolution.StatusFor(err), w, err)
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

// ItemSelfResolveHandler lets the reporter of a lost item mark it recovered
func (i Item) ItemSelfResolveHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	var req selfResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode self-resolve request", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := i.Engine.SelfResolveItem(r.Context(), itemID, req.OwnerID)
	if err != nil {
		config.ErrorStatus("failed to self-resolve item", resolution.StatusFor(err), w, err)
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

// ItemsByUserIDHandler returns all items reported by the given user
func (i Item) ItemsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v", Limit|10))
		Limit = 10
	}
	Page = getPage(Page, r)

	dbResp, err := i.Engine.ListItems(r.Context(), resolution.ItemFilter{
		ReporterID: userID,
		Limit:      Limit,
		Page:       Page,
	})
	if err != nil {
		config.ErrorStatus("failed to get items by user ID", resolution.StatusFor(err), w, err)
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

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}
