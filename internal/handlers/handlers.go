package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/aaronwang/auction-house/internal/broadcast"
	"github.com/aaronwang/auction-house/internal/metrics"
	"github.com/aaronwang/auction-house/internal/models"
	"github.com/aaronwang/auction-house/internal/service"
	"github.com/aaronwang/auction-house/internal/store"
)

// Identity headers injected by the auth layer in front of this service.
// Authentication itself is out of scope here.
const (
	headerUserID = "X-User-ID"
	headerAdmin  = "X-Admin"
)

// Handler contains the HTTP request handlers.
type Handler struct {
	admission *service.AdmissionService
	auctions  *service.AuctionService
	bids      store.BidLedger
	ws        *broadcast.Handler
	metrics   *metrics.Metrics
}

// NewHandler creates the HTTP handler set. metrics may be nil (tests).
func NewHandler(
	admission *service.AdmissionService,
	auctions *service.AuctionService,
	bids store.BidLedger,
	ws *broadcast.Handler,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		admission: admission,
		auctions:  auctions,
		bids:      bids,
		ws:        ws,
		metrics:   m,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	if h.ws != nil {
		router.HandleFunc("/ws/auctions/{id}", h.ws.ServeWS)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/bids", h.PlaceBid).Methods("POST")
	api.HandleFunc("/bids/auction/{id}", h.GetAuctionBids).Methods("GET")
	api.HandleFunc("/bids/my", h.GetMyBids).Methods("GET")
	api.HandleFunc("/bids/wins", h.GetMyWinningBids).Methods("GET")

	api.HandleFunc("/auctions", h.CreateAuction).Methods("POST")
	api.HandleFunc("/auctions", h.ListAuctions).Methods("GET")
	api.HandleFunc("/auctions/user/mine", h.GetMyAuctions).Methods("GET")
	api.HandleFunc("/auctions/{id}", h.GetAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}", h.UpdateAuction).Methods("PUT")
	api.HandleFunc("/auctions/{id}", h.DeleteAuction).Methods("DELETE")
	api.HandleFunc("/auctions/{id}/end", h.EndAuction).Methods("PUT")
	api.HandleFunc("/auctions/{id}/activate", h.ActivateAuction).Methods("PUT")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "auction-house",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// PlaceBid handles POST /api/v1/bids.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AuctionID == "" {
		respondError(w, http.StatusBadRequest, "auction_id is required")
		return
	}

	bid, err := h.admission.SubmitBid(r.Context(), req.AuctionID, userID, req.Amount)
	if err != nil {
		h.countRejection(err)
		h.respondDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.BidsAccepted.Inc()
	}
	respondJSON(w, http.StatusCreated, bid)
}

// GetAuctionBids handles GET /api/v1/bids/auction/{id}: all bids for an
// auction, highest amount first.
func (h *Handler) GetAuctionBids(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]

	if _, _, err := h.auctions.Get(r.Context(), auctionID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	bids, err := h.bids.ListByAuction(r.Context(), auctionID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orEmptyBids(bids))
}

// GetMyBids handles GET /api/v1/bids/my.
func (h *Handler) GetMyBids(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	bids, err := h.bids.ListByBidder(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orEmptyBids(bids))
}

// GetMyWinningBids handles GET /api/v1/bids/wins.
func (h *Handler) GetMyWinningBids(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	bids, err := h.bids.ListWinningByBidder(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orEmptyBids(bids))
}

// CreateAuction handles POST /api/v1/auctions.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auction, err := h.auctions.Create(r.Context(), userID, &req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, auction)
}

// ListAuctions handles GET /api/v1/auctions with status, category, keyword,
// page and page_size query filters.
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pageSize := intQuery(q.Get("page_size"), 10)
	page := intQuery(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}

	filter := models.AuctionFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Keyword:  q.Get("keyword"),
		Limit:    pageSize,
		Offset:   pageSize * (page - 1),
	}

	auctions, total, err := h.auctions.List(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"auctions": orEmptyAuctions(auctions),
		"page":     page,
		"pages":    pages,
		"total":    total,
	})
}

// GetAuction handles GET /api/v1/auctions/{id}: the auction plus its most
// recent bids.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auction, bids, err := h.auctions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"auction":     auction,
		"recent_bids": orEmptyBids(bids),
	})
}

// GetMyAuctions handles GET /api/v1/auctions/user/mine.
func (h *Handler) GetMyAuctions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	auctions, err := h.auctions.ListBySeller(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orEmptyAuctions(auctions))
}

// UpdateAuction handles PUT /api/v1/auctions/{id}.
func (h *Handler) UpdateAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auction, err := h.auctions.Update(r.Context(), mux.Vars(r)["id"], userID, &req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, auction)
}

// DeleteAuction handles DELETE /api/v1/auctions/{id}.
func (h *Handler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.auctions.Delete(r.Context(), mux.Vars(r)["id"], userID, isAdmin(r)); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "auction removed"})
}

// EndAuction handles PUT /api/v1/auctions/{id}/end: the manual close,
// sharing the scheduler's closure path.
func (h *Handler) EndAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	auction, err := h.auctions.End(r.Context(), mux.Vars(r)["id"], userID, isAdmin(r))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AuctionsClosed.Inc()
	}
	respondJSON(w, http.StatusOK, auction)
}

// ActivateAuction handles PUT /api/v1/auctions/{id}/activate: the seller
// opens a pending auction ahead of its start date.
func (h *Handler) ActivateAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	auction, err := h.auctions.ActivateNow(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, auction)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerAdmin) == "true"
}

func (h *Handler) countRejection(err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.BidsRejected.WithLabelValues(rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	var tooLow *models.BidTooLowError
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, models.ErrSelfBid):
		return "self_bid"
	case errors.As(err, &tooLow):
		return "too_low"
	case errors.Is(err, models.ErrDuplicateBid):
		return "duplicate"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// respondDomainError maps domain errors onto HTTP statuses.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var tooLow *models.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":         tooLow.Error(),
			"current_price": tooLow.CurrentPrice,
		})
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrAuctionNotActive),
		errors.Is(err, models.ErrSelfBid),
		errors.Is(err, models.ErrDuplicateBid),
		errors.Is(err, models.ErrNotPending),
		errors.Is(err, models.ErrInvalidAuction):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func orEmptyBids(bids []*models.Bid) []*models.Bid {
	if bids == nil {
		return []*models.Bid{}
	}
	return bids
}

func orEmptyAuctions(auctions []*models.Auction) []*models.Auction {
	if auctions == nil {
		return []*models.Auction{}
	}
	return auctions
}
