package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/services/recommend"
	"github.com/benvon/smart-docs/internal/validation"
)

// RecommendHandler serves template recommendations
type RecommendHandler struct {
	recommender *recommend.Recommender
	logger      *zap.Logger
}

// NewRecommendHandler creates a new recommendation handler
func NewRecommendHandler(rec *recommend.Recommender, log *zap.Logger) *RecommendHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecommendHandler{recommender: rec, logger: log}
}

// RegisterRoutes registers recommendation routes
func (h *RecommendHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/recommend", h.RecommendRandom).Methods(http.MethodGet)
	r.HandleFunc("/recommend", h.RecommendForUser).Methods(http.MethodPost)
}

// RecommendRandom recommends for a user drawn from the dataset
func (h *RecommendHandler) RecommendRandom(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recommender.Random(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// RecommendForUser recommends for the posted profile
func (h *RecommendHandler) RecommendForUser(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if err := decodeJSON(r, &profile); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.Struct(profile); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	rec, err := h.recommender.ForUser(r.Context(), profile)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *RecommendHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrModelNotLoaded):
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "kproto model is not loaded on server.")
	case errors.Is(err, recommend.ErrDatasetEmpty):
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "User CSV not loaded or empty.")
	default:
		h.logger.Error("recommendation_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute recommendations")
	}
}
