package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"beantrack/internal/imaging"
	"beantrack/internal/model"
	"beantrack/internal/store"
	"beantrack/internal/supply"
)

// ItemsHandler handles item lifecycle and query endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Supply *supply.Service
}

type harvestRequest struct {
	UPC                   int64  `json:"upc"`
	OriginFarmerID        string `json:"origin_farmer_id"`
	OriginFarmName        string `json:"origin_farm_name"`
	OriginFarmInformation string `json:"origin_farm_information"`
	OriginFarmLatitude    string `json:"origin_farm_latitude"`
	OriginFarmLongitude   string `json:"origin_farm_longitude"`
	ProductNotes          string `json:"product_notes"`
}

type sellRequest struct {
	Price int64 `json:"price"`
}

type buyRequest struct {
	Payment int64 `json:"payment"`
}

// upcParam parses the {upc} path value.
func upcParam(r *http.Request) (int64, bool) {
	upc, err := strconv.ParseInt(r.PathValue("upc"), 10, 64)
	if err != nil || upc <= 0 {
		return 0, false
	}
	return upc, true
}

// Harvest handles POST /api/items.
func (h *ItemsHandler) Harvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UPC <= 0 {
		jsonError(w, http.StatusBadRequest, "upc must be a positive integer")
		return
	}
	if req.OriginFarmName == "" {
		jsonError(w, http.StatusBadRequest, "origin_farm_name required")
		return
	}

	item, err := h.Supply.Harvest(r.Context(), GetPrincipal(r.Context()), supply.HarvestParams{
		UPC:                   req.UPC,
		OriginFarmerID:        req.OriginFarmerID,
		OriginFarmName:        req.OriginFarmName,
		OriginFarmInformation: req.OriginFarmInformation,
		OriginFarmLatitude:    req.OriginFarmLatitude,
		OriginFarmLongitude:   req.OriginFarmLongitude,
		ProductNotes:          req.ProductNotes,
	})
	if err != nil {
		lifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// transition is the shared shape of the body-less transition endpoints.
func (h *ItemsHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, caller string, upc int64) (*model.Item, error)) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	item, err := op(r.Context(), GetPrincipal(r.Context()), upc)
	if err != nil {
		lifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Process handles POST /api/items/{upc}/process.
func (h *ItemsHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Supply.Process)
}

// Pack handles POST /api/items/{upc}/pack.
func (h *ItemsHandler) Pack(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Supply.Pack)
}

// Sell handles POST /api/items/{upc}/sell.
func (h *ItemsHandler) Sell(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	var req sellRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price <= 0 {
		jsonError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	item, err := h.Supply.Sell(r.Context(), GetPrincipal(r.Context()), upc, req.Price)
	if err != nil {
		lifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Buy handles POST /api/items/{upc}/buy.
func (h *ItemsHandler) Buy(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Payment <= 0 {
		jsonError(w, http.StatusBadRequest, "payment must be positive")
		return
	}

	item, err := h.Supply.Buy(r.Context(), GetPrincipal(r.Context()), upc, req.Payment)
	if err != nil {
		lifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Ship handles POST /api/items/{upc}/ship.
func (h *ItemsHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Supply.Ship)
}

// Receive handles POST /api/items/{upc}/receive.
func (h *ItemsHandler) Receive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Supply.Receive)
}

// Purchase handles POST /api/items/{upc}/purchase.
func (h *ItemsHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Supply.Purchase)
}

// Get handles GET /api/items/{upc}: the full merged item record.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	item, err := store.GetItemByUPC(r.Context(), h.DB, upc)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// List handles GET /api/items, optionally filtered by ?state=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	state := model.State(r.URL.Query().Get("state"))
	if state != "" && !model.ValidState(state) {
		jsonError(w, http.StatusBadRequest, "invalid state")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, state)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// GetEvents handles GET /api/items/{upc}/events: the transition history.
func (h *ItemsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	item, err := store.GetItemByUPC(r.Context(), h.DB, upc)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	events, err := store.ListItemEvents(r.Context(), h.DB, upc)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// UploadPhoto handles PUT /api/items/{upc}/photo. Only the batch's origin
// farmer may attach a harvest photo.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	item, err := store.GetItemByUPC(r.Context(), h.DB, upc)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.OriginFarmerID != GetPrincipal(r.Context()) {
		jsonError(w, http.StatusForbidden, "only the origin farmer may upload a photo")
		return
	}

	photo, err := imaging.Normalize(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemPhoto(r.Context(), h.DB, upc, photo.Data, photo.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"mime": photo.MIME})
}

// GetPhoto handles GET /api/items/{upc}/photo.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	upc, ok := upcParam(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid upc")
		return
	}

	photo, mime, err := store.GetItemPhoto(r.Context(), h.DB, upc)
	if err != nil {
		lifecycleError(w, err)
		return
	}
	if len(photo) == 0 {
		jsonError(w, http.StatusNotFound, "item has no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(photo)
}
