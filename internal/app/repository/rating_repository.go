package repository

import (
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RatingFilter struct {
	StoreID   uint
	MinRating int
	MaxRating int
	SortBy    string
	SortOrder string
	Limit     int
}

var ratingSortColumns = map[string]string{
	"rating":     "ratings.rating",
	"created_at": "ratings.created_at",
	"updated_at": "ratings.updated_at",
}

// StoreRatingStats summarises the ratings of one store
type StoreRatingStats struct {
	TotalRatings  int64         `json:"total_ratings"`
	AverageRating float64       `json:"average_rating"`
	MinRating     int           `json:"min_rating"`
	MaxRating     int           `json:"max_rating"`
	Distribution  map[int]int64 `json:"distribution"`
}

type RatingRepository interface {
	WithTx(tx *gorm.DB) RatingRepository
	Upsert(rating *model.Rating) error
	Update(rating *model.Rating) error
	Delete(id uint) error
	FindByID(id uint) (*model.Rating, error)
	FindOwned(id, userID uint) (*model.Rating, error)
	FindByUserAndStore(userID, storeID uint) (*model.Rating, error)
	FindByStore(storeID uint, filter RatingFilter) ([]model.Rating, error)
	FindByUser(userID uint, filter RatingFilter) ([]model.Rating, error)
	DeleteByStore(storeID uint) error
	DeleteByUser(userID uint) ([]uint, error)
	StoreIDsByUser(userID uint) ([]uint, error)
	StoreStats(storeID uint) (*StoreRatingStats, error)
	Distribution(storeID uint) (map[int]int64, error)
	Count() (int64, error)
	CountSince(since time.Time) (int64, error)
	Average() (float64, error)
}

type ratingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) WithTx(tx *gorm.DB) RatingRepository {
	return &ratingRepository{db: tx}
}

// Upsert inserts the rating or, when (user_id, store_id) already exists,
// overwrites its value. The unique index arbitrates concurrent inserts.
func (r *ratingRepository) Upsert(rating *model.Rating) error {
	logger.Debug("Upserting rating", map[string]interface{}{
		"user_id":  rating.UserID,
		"store_id": rating.StoreID,
		"rating":   rating.Rating,
	})

	if err := r.db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
	}).Create(rating).Error; err != nil {
		logger.Error("Failed to upsert rating", err, map[string]interface{}{
			"user_id":  rating.UserID,
			"store_id": rating.StoreID,
		})
		return err
	}
	return nil
}

func (r *ratingRepository) Update(rating *model.Rating) error {
	if err := r.db.Model(rating).
		Select("rating", "updated_at").
		Updates(rating).Error; err != nil {
		logger.Error("Failed to update rating", err, map[string]interface{}{
			"rating_id": rating.ID,
		})
		return err
	}
	return nil
}

func (r *ratingRepository) Delete(id uint) error {
	result := r.db.Delete(&model.Rating{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete rating", result.Error, map[string]interface{}{
			"rating_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ratingRepository) FindByID(id uint) (*model.Rating, error) {
	var rating model.Rating
	if err := r.db.First(&rating, id).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

// FindOwned returns the rating only when userID owns it
func (r *ratingRepository) FindOwned(id, userID uint) (*model.Rating, error) {
	var rating model.Rating
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) FindByUserAndStore(userID, storeID uint) (*model.Rating, error) {
	var rating model.Rating
	if err := r.db.Where("user_id = ? AND store_id = ?", userID, storeID).First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) applyFilter(query *gorm.DB, filter RatingFilter) *gorm.DB {
	if filter.MinRating > 0 {
		query = query.Where("ratings.rating >= ?", filter.MinRating)
	}
	if filter.MaxRating > 0 {
		query = query.Where("ratings.rating <= ?", filter.MaxRating)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query.Order(orderBy(ratingSortColumns, filter.SortBy, filter.SortOrder, "ratings.created_at", "DESC"))
}

// FindByStore lists a store's ratings with each rater attached
func (r *ratingRepository) FindByStore(storeID uint, filter RatingFilter) ([]model.Rating, error) {
	logger.Debug("Finding ratings for store", map[string]interface{}{
		"store_id": storeID,
	})

	query := r.db.Model(&model.Rating{}).Preload("User").Where("ratings.store_id = ?", storeID)

	var ratings []model.Rating
	if err := r.applyFilter(query, filter).Find(&ratings).Error; err != nil {
		logger.Error("Failed to find ratings for store", err, map[string]interface{}{
			"store_id": storeID,
		})
		return nil, err
	}
	return ratings, nil
}

// FindByUser lists a user's ratings with each store attached
func (r *ratingRepository) FindByUser(userID uint, filter RatingFilter) ([]model.Rating, error) {
	logger.Debug("Finding ratings for user", map[string]interface{}{
		"user_id": userID,
	})

	query := r.db.Model(&model.Rating{}).Preload("Store").Where("ratings.user_id = ?", userID)
	if filter.StoreID != 0 {
		query = query.Where("ratings.store_id = ?", filter.StoreID)
	}

	var ratings []model.Rating
	if err := r.applyFilter(query, filter).Find(&ratings).Error; err != nil {
		logger.Error("Failed to find ratings for user", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return ratings, nil
}

func (r *ratingRepository) DeleteByStore(storeID uint) error {
	if err := r.db.Where("store_id = ?", storeID).Delete(&model.Rating{}).Error; err != nil {
		logger.Error("Failed to delete store ratings", err, map[string]interface{}{
			"store_id": storeID,
		})
		return err
	}
	return nil
}

// StoreIDsByUser lists the stores userID has rated, ascending
func (r *ratingRepository) StoreIDsByUser(userID uint) ([]uint, error) {
	var storeIDs []uint
	err := r.db.Model(&model.Rating{}).
		Where("user_id = ?", userID).
		Distinct().
		Order("store_id").
		Pluck("store_id", &storeIDs).Error
	return storeIDs, err
}

// DeleteByUser removes every rating by userID and returns the stores that were affected
func (r *ratingRepository) DeleteByUser(userID uint) ([]uint, error) {
	var storeIDs []uint
	if err := r.db.Model(&model.Rating{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("store_id", &storeIDs).Error; err != nil {
		return nil, err
	}
	if len(storeIDs) == 0 {
		return nil, nil
	}

	if err := r.db.Where("user_id = ?", userID).Delete(&model.Rating{}).Error; err != nil {
		logger.Error("Failed to delete user ratings", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return storeIDs, nil
}

func (r *ratingRepository) StoreStats(storeID uint) (*StoreRatingStats, error) {
	var row struct {
		TotalRatings  int64
		AverageRating float64
		MinRating     int
		MaxRating     int
	}
	if err := r.db.Model(&model.Rating{}).
		Select(`COUNT(*) AS total_ratings,
			COALESCE(AVG(rating * 1.0), 0) AS average_rating,
			COALESCE(MIN(rating), 0) AS min_rating,
			COALESCE(MAX(rating), 0) AS max_rating`).
		Where("store_id = ?", storeID).
		Scan(&row).Error; err != nil {
		logger.Error("Failed to compute store rating stats", err, map[string]interface{}{
			"store_id": storeID,
		})
		return nil, err
	}

	distribution, err := r.Distribution(storeID)
	if err != nil {
		return nil, err
	}

	return &StoreRatingStats{
		TotalRatings:  row.TotalRatings,
		AverageRating: row.AverageRating,
		MinRating:     row.MinRating,
		MaxRating:     row.MaxRating,
		Distribution:  distribution,
	}, nil
}

// Distribution counts ratings per value 1..5. storeID 0 covers all stores.
func (r *ratingRepository) Distribution(storeID uint) (map[int]int64, error) {
	var rows []struct {
		Rating int
		Count  int64
	}
	query := r.db.Model(&model.Rating{}).Select("rating, COUNT(*) AS count")
	if storeID != 0 {
		query = query.Where("store_id = ?", storeID)
	}
	if err := query.Group("rating").Scan(&rows).Error; err != nil {
		logger.Error("Failed to compute rating distribution", err)
		return nil, err
	}

	distribution := make(map[int]int64, model.MaxRating)
	for v := model.MinRating; v <= model.MaxRating; v++ {
		distribution[v] = 0
	}
	for _, row := range rows {
		distribution[row.Rating] = row.Count
	}
	return distribution, nil
}

func (r *ratingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Rating{}).Count(&count).Error
	return count, err
}

func (r *ratingRepository) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Rating{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

func (r *ratingRepository) Average() (float64, error) {
	var avg float64
	err := r.db.Model(&model.Rating{}).Select("COALESCE(AVG(rating * 1.0), 0)").Scan(&avg).Error
	return avg, err
}
