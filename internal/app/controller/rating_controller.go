package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/app/service"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/internal/middleware"
	"github.com/ikkim/storerating-backend/internal/websocket"
)

type RatingController struct {
	ratingService service.RatingService
	hub           *websocket.Hub
	upgrader      *gorillaws.Upgrader
}

// NewRatingController builds the controller. hub may be nil, which disables the live feed.
func NewRatingController(ratingService service.RatingService, hub *websocket.Hub, upgrader *gorillaws.Upgrader) *RatingController {
	return &RatingController{
		ratingService: ratingService,
		hub:           hub,
		upgrader:      upgrader,
	}
}

// Rating values are validated by the service so that "4", 4 and 4.0 are all accepted
type SubmitRatingRequest struct {
	StoreID uint        `json:"store_id" binding:"required"`
	Rating  interface{} `json:"rating"`
}

type UpdateRatingRequest struct {
	Rating interface{} `json:"rating"`
}

// Submit creates or overwrites the caller's rating of a store
// POST /api/ratings
func (ctrl *RatingController) Submit(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubmitRatingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := ctrl.ratingService.Submit(user.ID, req.StoreID, req.Rating)
	if err != nil {
		respondError(c, err, "submit rating")
		return
	}

	message := "Rating updated successfully"
	if result.Created {
		message = "Rating submitted successfully"
	}

	log.Info(message, map[string]interface{}{
		"rating_id": result.Rating.ID,
		"store_id":  req.StoreID,
	})
	respondOK(c, http.StatusCreated, message, result)
}

// Update changes the value of one of the caller's ratings
// PUT /api/ratings/:id
func (ctrl *RatingController) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ratingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateRatingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := ctrl.ratingService.Update(ratingID, user.ID, req.Rating)
	if err != nil {
		respondError(c, err, "update rating")
		return
	}

	respondOK(c, http.StatusOK, "Rating updated successfully", result)
}

// Delete removes one of the caller's ratings
// DELETE /api/ratings/:id
func (ctrl *RatingController) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ratingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	store, err := ctrl.ratingService.Delete(ratingID, user.ID)
	if err != nil {
		respondError(c, err, "delete rating")
		return
	}

	respondOK(c, http.StatusOK, "Rating deleted successfully", gin.H{"store": store})
}

// StoreRatings lists a store's ratings with stats
// GET /api/ratings/store/:storeId
func (ctrl *RatingController) StoreRatings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	storeID, ok := parseIDParam(c, "storeId")
	if !ok {
		return
	}

	filter, ok := ratingFilterFromQuery(c)
	if !ok {
		return
	}
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	result, err := ctrl.ratingService.GetStoreRatings(user, storeID, filter)
	if err != nil {
		respondError(c, err, "list store ratings")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"store":   result.Store,
		"ratings": result.Ratings,
		"stats":   result.Stats,
		"total":   len(result.Ratings),
	})
}

// UserRatings lists the ratings a user gave
// GET /api/ratings/user/:userId
func (ctrl *RatingController) UserRatings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	filter, ok := ratingFilterFromQuery(c)
	if !ok {
		return
	}
	if filter.StoreID, ok = queryUint(c, "storeId"); !ok {
		return
	}

	ratings, err := ctrl.ratingService.GetUserRatings(user, userID, filter)
	if err != nil {
		respondError(c, err, "list user ratings")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"ratings": ratings,
		"total":   len(ratings),
	})
}

// UserStoreRating returns the rating one user gave one store
// GET /api/ratings/user/:userId/store/:storeId
func (ctrl *RatingController) UserStoreRating(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	storeID, ok := parseIDParam(c, "storeId")
	if !ok {
		return
	}

	rating, err := ctrl.ratingService.GetUserStoreRating(user, userID, storeID)
	if err != nil {
		respondError(c, err, "get user store rating")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{"rating": rating})
}

// MyRatings lists the caller's latest ratings
// GET /api/ratings/my-ratings
func (ctrl *RatingController) MyRatings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			invalidQuery(c, "limit", "limit must be a positive integer")
			return
		}
		limit = v
	}

	ratings, err := ctrl.ratingService.MyRatings(user.ID, limit)
	if err != nil {
		respondError(c, err, "list my ratings")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"ratings": ratings,
		"total":   len(ratings),
	})
}

// MyStoreSummary returns the ratings and stats of the caller's store
// GET /api/ratings/my-store/summary
func (ctrl *RatingController) MyStoreSummary(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := ctrl.ratingService.OwnerSummary(user)
	if err != nil {
		respondError(c, err, "store summary")
		return
	}

	respondOK(c, http.StatusOK, "", result)
}

// Stats returns platform-wide rating statistics
// GET /api/ratings/stats
func (ctrl *RatingController) Stats(c *gin.Context) {
	stats, err := ctrl.ratingService.GlobalStats()
	if err != nil {
		respondError(c, err, "rating stats")
		return
	}

	respondOK(c, http.StatusOK, "", stats)
}

// Live upgrades to a WebSocket streaming one store's rating events
// GET /api/ratings/live
func (ctrl *RatingController) Live(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	user, ok := currentUser(c)
	if !ok {
		return
	}
	if ctrl.hub == nil || ctrl.upgrader == nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindUnavailable, apperrors.InternalConfigError,
			"Live feed is not available"), "live feed")
		return
	}

	var storeID uint
	if user.Role == model.RoleStoreOwner {
		ownStore := middleware.GetStoreID(c)
		if ownStore == nil {
			respondError(c, service.ErrStoreNotAssigned, "live feed")
			return
		}
		storeID = *ownStore
	} else {
		if storeID, ok = queryUint(c, "store_id"); !ok {
			return
		}
		if storeID == 0 {
			invalidQuery(c, "store_id", "store_id is required")
			return
		}
		if _, err := ctrl.ratingService.StoreStats(storeID); err != nil {
			respondError(c, err, "live feed")
			return
		}
	}

	ws, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ctrl.hub.Serve(ws, user.ID, storeID)
	log.Info("Live rating feed opened", map[string]interface{}{
		"user_id":  user.ID,
		"store_id": storeID,
	})
}

func ratingFilterFromQuery(c *gin.Context) (repository.RatingFilter, bool) {
	var filter repository.RatingFilter
	var ok bool
	if filter.MinRating, ok = queryRatingBound(c, "minRating"); !ok {
		return filter, false
	}
	if filter.MaxRating, ok = queryRatingBound(c, "maxRating"); !ok {
		return filter, false
	}
	if filter.MinRating > 0 && filter.MaxRating > 0 && filter.MinRating > filter.MaxRating {
		invalidQuery(c, "minRating", "minRating must not exceed maxRating")
		return filter, false
	}
	return filter, true
}
