package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/app/service"
	"github.com/ikkim/storerating-backend/internal/middleware"
)

type StoreController struct {
	storeService  service.StoreService
	ratingService service.RatingService
}

func NewStoreController(storeService service.StoreService, ratingService service.RatingService) *StoreController {
	return &StoreController{
		storeService:  storeService,
		ratingService: ratingService,
	}
}

type CreateStoreRequest struct {
	Name    string `json:"name" binding:"required,notblank,max=255"`
	Email   string `json:"email" binding:"required,email,max=255"`
	Address string `json:"address" binding:"required,notblank,max=400"`
}

type UpdateStoreRequest struct {
	Name    *string `json:"name" binding:"omitempty,notblank,max=255"`
	Email   *string `json:"email" binding:"omitempty,email,max=255"`
	Address *string `json:"address" binding:"omitempty,notblank,max=400"`
}

// ListStores returns stores matching the query filters
// GET /api/stores
func (ctrl *StoreController) ListStores(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filter := repository.StoreFilter{
		Name:      c.Query("name"),
		Email:     c.Query("email"),
		Address:   c.Query("address"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}

	if raw := strings.TrimSpace(c.Query("minRating")); raw != "" {
		minRating, err := strconv.ParseFloat(raw, 64)
		if err != nil || minRating < 0 || minRating > model.MaxRating {
			invalidQuery(c, "minRating", "minRating must be a number between 0 and 5")
			return
		}
		filter.MinRating = &minRating
	}

	if raw := strings.TrimSpace(c.Query("hasUserRating")); raw != "" {
		hasUserRating, err := strconv.ParseBool(raw)
		if err != nil {
			invalidQuery(c, "hasUserRating", "hasUserRating must be true or false")
			return
		}
		filter.HasUserRating = &hasUserRating
	}

	stores, err := ctrl.storeService.ListStores(user, filter)
	if err != nil {
		respondError(c, err, "list stores")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"stores": stores,
		"total":  len(stores),
	})
}

// GetStore returns one store as seen by the caller
// GET /api/stores/:id
func (ctrl *StoreController) GetStore(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	storeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := ctrl.storeService.GetStore(user, storeID)
	if err != nil {
		respondError(c, err, "get store")
		return
	}

	respondOK(c, http.StatusOK, "", detail)
}

// CreateStore creates a store; store owners become its owner
// POST /api/stores
func (ctrl *StoreController) CreateStore(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateStoreRequest
	if !bindJSON(c, &req) {
		return
	}

	store, err := ctrl.storeService.CreateStore(user, service.StoreInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		respondError(c, err, "create store")
		return
	}

	log.Info("Store created", map[string]interface{}{
		"store_id": store.ID,
		"user_id":  user.ID,
	})
	respondOK(c, http.StatusCreated, "Store created successfully", gin.H{"store": store})
}

// UpdateStore applies a partial update
// PUT /api/stores/:id
func (ctrl *StoreController) UpdateStore(c *gin.Context) {
	storeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStoreRequest
	if !bindJSON(c, &req) {
		return
	}

	store, err := ctrl.storeService.UpdateStore(storeID, service.UpdateStoreInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		respondError(c, err, "update store")
		return
	}

	respondOK(c, http.StatusOK, "Store updated successfully", gin.H{"store": store})
}

// DeleteStore removes a store and its ratings
// DELETE /api/stores/:id
func (ctrl *StoreController) DeleteStore(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	storeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.storeService.DeleteStore(storeID); err != nil {
		respondError(c, err, "delete store")
		return
	}

	log.Info("Store deleted", map[string]interface{}{
		"store_id": storeID,
	})
	respondOK(c, http.StatusOK, "Store deleted successfully", nil)
}

// ListRatings returns the ratings of one store
// GET /api/stores/:id/ratings
func (ctrl *StoreController) ListRatings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	storeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := ctrl.ratingService.GetStoreRatings(user, storeID, repository.RatingFilter{})
	if err != nil {
		respondError(c, err, "list store ratings")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"store":   result.Store,
		"ratings": result.Ratings,
	})
}
