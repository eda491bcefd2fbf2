package service

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultMyRatingsLimit = 50
	MaxMyRatingsLimit     = 200

	globalTopStoresMinRatings = 3
	globalTopStoresLimit      = 10
	recentWindow              = 30 * 24 * time.Hour
)

// RatingEventPublisher receives every committed rating change
type RatingEventPublisher interface {
	Publish(event model.RatingEvent)
}

type multiPublisher []RatingEventPublisher

func (m multiPublisher) Publish(event model.RatingEvent) {
	for _, p := range m {
		p.Publish(event)
	}
}

// MultiPublisher fans an event out to every non-nil publisher
func MultiPublisher(publishers ...RatingEventPublisher) RatingEventPublisher {
	var m multiPublisher
	for _, p := range publishers {
		if p != nil {
			m = append(m, p)
		}
	}
	return m
}

// RatingResult is a committed rating together with its store's fresh aggregates
type RatingResult struct {
	Rating  *model.Rating `json:"rating"`
	Store   *model.Store  `json:"store"`
	Created bool          `json:"-"`
}

type StoreRatings struct {
	Store   *model.Store                 `json:"store"`
	Ratings []model.Rating               `json:"ratings"`
	Stats   *repository.StoreRatingStats `json:"stats"`
}

type RatingShare struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type GlobalRatingStats struct {
	Total         int64               `json:"total"`
	AverageRating float64             `json:"averageRating"`
	Distribution  map[int]RatingShare `json:"distribution"`
	Recent        int64               `json:"recent"`
	TopStores     []model.Store       `json:"topStores"`
}

type RatingService interface {
	Submit(userID, storeID uint, value interface{}) (*RatingResult, error)
	Update(ratingID, userID uint, value interface{}) (*RatingResult, error)
	Delete(ratingID, userID uint) (*model.Store, error)
	GetStoreRatings(actor *model.User, storeID uint, filter repository.RatingFilter) (*StoreRatings, error)
	GetUserRatings(actor *model.User, userID uint, filter repository.RatingFilter) ([]model.Rating, error)
	GetUserStoreRating(actor *model.User, userID, storeID uint) (*model.Rating, error)
	MyRatings(userID uint, limit int) ([]model.Rating, error)
	OwnerSummary(actor *model.User) (*StoreRatings, error)
	StoreStats(storeID uint) (*repository.StoreRatingStats, error)
	GlobalStats() (*GlobalRatingStats, error)
	ReconcileAggregates() (int64, error)
}

type ratingService struct {
	db         *gorm.DB
	storeRepo  repository.StoreRepository
	ratingRepo repository.RatingRepository
	publisher  RatingEventPublisher
	now        func() time.Time
}

// NewRatingService builds the rating service. publisher may be nil.
func NewRatingService(
	db *gorm.DB,
	storeRepo repository.StoreRepository,
	ratingRepo repository.RatingRepository,
	publisher RatingEventPublisher,
) RatingService {
	return &ratingService{
		db:         db,
		storeRepo:  storeRepo,
		ratingRepo: ratingRepo,
		publisher:  publisher,
		now:        time.Now,
	}
}

// ValidateRatingValue accepts integers 1..5 given as JSON numbers,
// integral floats or numeric strings.
func ValidateRatingValue(value interface{}) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, ErrInvalidRating
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return 0, ErrInvalidRating
			}
			i = int64(f)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, ErrInvalidRating
		}
		n = i
	default:
		return 0, ErrInvalidRating
	}

	if n < model.MinRating || n > model.MaxRating {
		return 0, ErrInvalidRating
	}
	return int(n), nil
}

func (s *ratingService) Submit(userID, storeID uint, value interface{}) (*RatingResult, error) {
	rating, err := ValidateRatingValue(value)
	if err != nil {
		logger.Warn("Rating rejected: invalid value", map[string]interface{}{
			"user_id":  userID,
			"store_id": storeID,
		})
		return nil, err
	}

	logger.Info("Submitting rating", map[string]interface{}{
		"user_id":  userID,
		"store_id": storeID,
		"rating":   rating,
	})

	result := &RatingResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		storeRepo := s.storeRepo.WithTx(tx)
		ratingRepo := s.ratingRepo.WithTx(tx)

		if _, err := storeRepo.FindByIDForUpdate(storeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStoreNotFound
			}
			return err
		}

		existing, err := ratingRepo.FindByUserAndStore(userID, storeID)
		switch {
		case err == nil:
			existing.Rating = rating
			if err := ratingRepo.Update(existing); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Created = true
			if err := ratingRepo.Upsert(&model.Rating{UserID: userID, StoreID: storeID, Rating: rating}); err != nil {
				return err
			}
		default:
			return err
		}

		saved, err := ratingRepo.FindByUserAndStore(userID, storeID)
		if err != nil {
			return err
		}
		result.Rating = saved

		result.Store, err = s.refreshAggregates(storeRepo, storeID)
		return err
	})
	if err != nil {
		return nil, fail(err, "submit rating", map[string]interface{}{
			"user_id":  userID,
			"store_id": storeID,
		})
	}

	eventType := model.RatingUpdated
	if result.Created {
		eventType = model.RatingSubmitted
	}
	s.publish(eventType, result.Rating, result.Store)

	logger.Info("Rating submitted", map[string]interface{}{
		"rating_id":      result.Rating.ID,
		"store_id":       storeID,
		"created":        result.Created,
		"average_rating": result.Store.AverageRating,
		"total_ratings":  result.Store.TotalRatings,
	})
	return result, nil
}

func (s *ratingService) Update(ratingID, userID uint, value interface{}) (*RatingResult, error) {
	rating, err := ValidateRatingValue(value)
	if err != nil {
		return nil, err
	}

	result := &RatingResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		storeRepo := s.storeRepo.WithTx(tx)
		ratingRepo := s.ratingRepo.WithTx(tx)

		existing, err := ratingRepo.FindOwned(ratingID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRatingNotFound
			}
			return err
		}
		if _, err := storeRepo.FindByIDForUpdate(existing.StoreID); err != nil {
			return err
		}

		existing.Rating = rating
		if err := ratingRepo.Update(existing); err != nil {
			return err
		}
		result.Rating, err = ratingRepo.FindByID(ratingID)
		if err != nil {
			return err
		}

		result.Store, err = s.refreshAggregates(storeRepo, existing.StoreID)
		return err
	})
	if err != nil {
		return nil, fail(err, "update rating", map[string]interface{}{
			"rating_id": ratingID,
			"user_id":   userID,
		})
	}

	s.publish(model.RatingUpdated, result.Rating, result.Store)

	logger.Info("Rating updated", map[string]interface{}{
		"rating_id":      ratingID,
		"store_id":       result.Store.ID,
		"average_rating": result.Store.AverageRating,
	})
	return result, nil
}

func (s *ratingService) Delete(ratingID, userID uint) (*model.Store, error) {
	var (
		deleted *model.Rating
		store   *model.Store
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		storeRepo := s.storeRepo.WithTx(tx)
		ratingRepo := s.ratingRepo.WithTx(tx)

		existing, err := ratingRepo.FindOwned(ratingID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRatingNotFound
			}
			return err
		}
		if _, err := storeRepo.FindByIDForUpdate(existing.StoreID); err != nil {
			return err
		}
		if err := ratingRepo.Delete(ratingID); err != nil {
			return err
		}
		deleted = existing

		store, err = s.refreshAggregates(storeRepo, existing.StoreID)
		return err
	})
	if err != nil {
		return nil, fail(err, "delete rating", map[string]interface{}{
			"rating_id": ratingID,
			"user_id":   userID,
		})
	}

	s.publish(model.RatingDeleted, deleted, store)

	logger.Info("Rating deleted", map[string]interface{}{
		"rating_id":     ratingID,
		"store_id":      store.ID,
		"total_ratings": store.TotalRatings,
	})
	return store, nil
}

func (s *ratingService) GetStoreRatings(actor *model.User, storeID uint, filter repository.RatingFilter) (*StoreRatings, error) {
	if actor.Role == model.RoleStoreOwner && !actor.OwnsStore(storeID) {
		logger.Warn("Store owner requested foreign store ratings", map[string]interface{}{
			"user_id":  actor.ID,
			"store_id": storeID,
		})
		return nil, ErrNotStoreOwner
	}
	return s.storeRatings(storeID, filter)
}

func (s *ratingService) GetUserRatings(actor *model.User, userID uint, filter repository.RatingFilter) ([]model.Rating, error) {
	if actor.Role != model.RoleAdmin && actor.ID != userID {
		return nil, ErrForbidden
	}
	if filter.SortBy == "" {
		filter.SortBy, filter.SortOrder = "updated_at", repository.SortDesc
	}

	ratings, err := s.ratingRepo.FindByUser(userID, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return ratings, nil
}

func (s *ratingService) GetUserStoreRating(actor *model.User, userID, storeID uint) (*model.Rating, error) {
	if actor.Role != model.RoleAdmin && actor.ID != userID {
		return nil, ErrForbidden
	}

	rating, err := s.ratingRepo.FindByUserAndStore(userID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRatingNotFound
		}
		return nil, apperrors.Internal(err)
	}
	return rating, nil
}

func (s *ratingService) MyRatings(userID uint, limit int) ([]model.Rating, error) {
	if limit <= 0 {
		limit = DefaultMyRatingsLimit
	}
	if limit > MaxMyRatingsLimit {
		limit = MaxMyRatingsLimit
	}

	ratings, err := s.ratingRepo.FindByUser(userID, repository.RatingFilter{
		SortBy:    "updated_at",
		SortOrder: repository.SortDesc,
		Limit:     limit,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return ratings, nil
}

// OwnerSummary returns the ratings and stats of the store owned by actor
func (s *ratingService) OwnerSummary(actor *model.User) (*StoreRatings, error) {
	if actor.StoreID == nil {
		return nil, ErrStoreNotAssigned
	}
	return s.storeRatings(*actor.StoreID, repository.RatingFilter{})
}

func (s *ratingService) StoreStats(storeID uint) (*repository.StoreRatingStats, error) {
	if _, err := s.storeRepo.FindByID(storeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, apperrors.Internal(err)
	}

	stats, err := s.ratingRepo.StoreStats(storeID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return stats, nil
}

func (s *ratingService) GlobalStats() (*GlobalRatingStats, error) {
	total, err := s.ratingRepo.Count()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	avg, err := s.ratingRepo.Average()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	counts, err := s.ratingRepo.Distribution(0)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	recent, err := s.ratingRepo.CountSince(s.now().Add(-recentWindow))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	top, err := s.storeRepo.TopRated(globalTopStoresMinRatings, globalTopStoresLimit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	distribution := make(map[int]RatingShare, len(counts))
	for value, count := range counts {
		share := RatingShare{Count: count}
		if total > 0 {
			share.Percentage = math.Round(float64(count)*10000/float64(total)) / 100
		}
		distribution[value] = share
	}

	return &GlobalRatingStats{
		Total:         total,
		AverageRating: avg,
		Distribution:  distribution,
		Recent:        recent,
		TopStores:     top,
	}, nil
}

func (s *ratingService) ReconcileAggregates() (int64, error) {
	var corrected int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		corrected, err = s.storeRepo.WithTx(tx).ReconcileAggregates()
		return err
	})
	if err != nil {
		logger.Error("Aggregate reconciliation failed", err)
		return 0, apperrors.Internal(err)
	}
	return corrected, nil
}

func (s *ratingService) storeRatings(storeID uint, filter repository.RatingFilter) (*StoreRatings, error) {
	store, err := s.storeRepo.FindByID(storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, apperrors.Internal(err)
	}

	ratings, err := s.ratingRepo.FindByStore(storeID, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	stats, err := s.ratingRepo.StoreStats(storeID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &StoreRatings{Store: store, Ratings: ratings, Stats: stats}, nil
}

// refreshAggregates recomputes the store columns and reloads the store.
// Must run inside the rating write transaction.
func (s *ratingService) refreshAggregates(storeRepo repository.StoreRepository, storeID uint) (*model.Store, error) {
	if err := storeRepo.RecomputeAggregates(storeID); err != nil {
		return nil, err
	}
	return storeRepo.FindByID(storeID)
}

func (s *ratingService) publish(eventType model.RatingEventType, rating *model.Rating, store *model.Store) {
	if s.publisher == nil || rating == nil || store == nil {
		return
	}
	s.publisher.Publish(model.RatingEvent{
		Type:          eventType,
		StoreID:       store.ID,
		RatingID:      rating.ID,
		UserID:        rating.UserID,
		Rating:        rating.Rating,
		AverageRating: store.AverageRating,
		TotalRatings:  store.TotalRatings,
		At:            s.now(),
	})
}
