package repository

import (
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StoreFilter struct {
	Name      string
	Email     string
	Address   string
	Search    string
	MinRating *float64
	SortBy    string
	SortOrder string

	// RaterID > 0 attaches that user's rating to each row as user_rating
	RaterID uint
	// HasUserRating narrows to stores RaterID has (true) or has not (false) rated
	HasUserRating *bool
}

var storeSortColumns = map[string]string{
	"name":           "stores.name",
	"email":          "stores.email",
	"address":        "stores.address",
	"average_rating": "stores.average_rating",
	"total_ratings":  "stores.total_ratings",
	"created_at":     "stores.created_at",
}

const aggregateColumnsSQL = `
	total_ratings = (SELECT COUNT(*) FROM ratings WHERE ratings.store_id = stores.id),
	average_rating = COALESCE((SELECT AVG(ratings.rating * 1.0) FROM ratings WHERE ratings.store_id = stores.id), 0)`

type StoreRepository interface {
	WithTx(tx *gorm.DB) StoreRepository
	Create(store *model.Store) error
	BulkCreate(stores []model.Store, batchSize int) error
	Update(store *model.Store) error
	Delete(id uint) error
	FindByID(id uint) (*model.Store, error)
	FindByIDForUpdate(id uint) (*model.Store, error)
	LockByIDs(ids []uint) error
	FindByEmail(email string) (*model.Store, error)
	FindAll(filter StoreFilter) ([]model.Store, error)
	TopRated(minRatings, limit int) ([]model.Store, error)
	Count() (int64, error)
	RecomputeAggregates(storeID uint) error
	ReconcileAggregates() (int64, error)
}

type storeRepository struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) WithTx(tx *gorm.DB) StoreRepository {
	return &storeRepository{db: tx}
}

func (r *storeRepository) Create(store *model.Store) error {
	logger.Debug("Creating store in database", map[string]interface{}{
		"name":  store.Name,
		"email": store.Email,
	})

	if err := r.db.Omit(clause.Associations).Create(store).Error; err != nil {
		logger.Error("Failed to create store in database", err, map[string]interface{}{
			"name":  store.Name,
			"email": store.Email,
		})
		return err
	}

	logger.Debug("Store created in database", map[string]interface{}{
		"store_id": store.ID,
	})
	return nil
}

func (r *storeRepository) BulkCreate(stores []model.Store, batchSize int) error {
	if len(stores) == 0 {
		return nil
	}

	logger.Info("Bulk creating stores", map[string]interface{}{
		"count":      len(stores),
		"batch_size": batchSize,
	})

	// Rows whose email already exists are skipped so imports can be re-run
	if err := r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		CreateInBatches(&stores, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create stores", err)
		return err
	}
	return nil
}

// Update writes the editable columns only. Aggregates are owned by
// RecomputeAggregates and are never overwritten from a stale struct.
func (r *storeRepository) Update(store *model.Store) error {
	logger.Debug("Updating store in database", map[string]interface{}{
		"store_id": store.ID,
	})

	if err := r.db.Model(store).
		Select("name", "email", "address", "updated_at").
		Updates(store).Error; err != nil {
		logger.Error("Failed to update store in database", err, map[string]interface{}{
			"store_id": store.ID,
		})
		return err
	}
	return nil
}

func (r *storeRepository) Delete(id uint) error {
	logger.Debug("Deleting store from database", map[string]interface{}{
		"store_id": id,
	})

	result := r.db.Delete(&model.Store{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete store from database", result.Error, map[string]interface{}{
			"store_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *storeRepository) FindByID(id uint) (*model.Store, error) {
	var store model.Store
	if err := r.db.Preload("Owner").First(&store, id).Error; err != nil {
		logger.Debug("Store lookup by ID failed", map[string]interface{}{
			"store_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}
	return &store, nil
}

// LockByIDs takes row locks on the given stores in id order for the rest
// of the surrounding transaction. Missing ids are ignored.
func (r *storeRepository) LockByIDs(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []uint
	return r.db.Model(&model.Store{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
}

// FindByIDForUpdate loads the store holding a row lock for the rest of
// the surrounding transaction.
func (r *storeRepository) FindByIDForUpdate(id uint) (*model.Store, error) {
	var store model.Store
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&store, id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) FindByEmail(email string) (*model.Store, error) {
	var store model.Store
	if err := r.db.Where("email = ?", model.NormalizeEmail(email)).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) FindAll(filter StoreFilter) ([]model.Store, error) {
	logger.Debug("Finding stores", map[string]interface{}{
		"name":     filter.Name,
		"address":  filter.Address,
		"search":   filter.Search,
		"rater_id": filter.RaterID,
	})

	query := r.db.Model(&model.Store{}).Preload("Owner")
	if filter.RaterID != 0 {
		query = query.
			Select("stores.*, ur.rating AS user_rating").
			Joins("LEFT JOIN ratings ur ON ur.store_id = stores.id AND ur.user_id = ?", filter.RaterID)
		if filter.HasUserRating != nil {
			if *filter.HasUserRating {
				query = query.Where("ur.id IS NOT NULL")
			} else {
				query = query.Where("ur.id IS NULL")
			}
		}
	}

	query = whereContains(query, "stores.name", filter.Name)
	query = whereContains(query, "stores.email", filter.Email)
	query = whereContains(query, "stores.address", filter.Address)
	query = whereSearch(query, filter.Search, "stores.name", "stores.email", "stores.address")
	if filter.MinRating != nil {
		query = query.Where("stores.average_rating >= ?", *filter.MinRating)
	}

	var stores []model.Store
	if err := query.Order(orderBy(storeSortColumns, filter.SortBy, filter.SortOrder, "stores.created_at", "ASC")).
		Find(&stores).Error; err != nil {
		logger.Error("Failed to find stores", err)
		return nil, err
	}

	logger.Debug("Stores found", map[string]interface{}{
		"count": len(stores),
	})
	return stores, nil
}

func (r *storeRepository) TopRated(minRatings, limit int) ([]model.Store, error) {
	var stores []model.Store
	if err := r.db.
		Where("total_ratings >= ?", minRatings).
		Order("average_rating DESC, total_ratings DESC, id ASC").
		Limit(limit).
		Find(&stores).Error; err != nil {
		logger.Error("Failed to find top rated stores", err)
		return nil, err
	}
	return stores, nil
}

func (r *storeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Store{}).Count(&count).Error
	return count, err
}

// RecomputeAggregates rewrites average_rating and total_ratings for one
// store from its rating rows.
func (r *storeRepository) RecomputeAggregates(storeID uint) error {
	if err := r.db.Exec("UPDATE stores SET"+aggregateColumnsSQL+" WHERE stores.id = ?", storeID).Error; err != nil {
		logger.Error("Failed to recompute store aggregates", err, map[string]interface{}{
			"store_id": storeID,
		})
		return err
	}
	return nil
}

// ReconcileAggregates recomputes every store whose columns disagree with
// its ratings and returns how many were corrected. It must run inside a
// transaction: every store row is locked first, in id order, so the
// recompute statement never reads ratings older than a concurrent write
// that already updated the store.
func (r *storeRepository) ReconcileAggregates() (int64, error) {
	var ids []uint
	if err := r.db.Model(&model.Store{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		logger.Error("Failed to lock stores for reconciliation", err)
		return 0, err
	}

	result := r.db.Exec(`UPDATE stores SET` + aggregateColumnsSQL + `
	WHERE total_ratings <> (SELECT COUNT(*) FROM ratings WHERE ratings.store_id = stores.id)
	   OR ABS(average_rating - COALESCE((SELECT AVG(ratings.rating * 1.0) FROM ratings WHERE ratings.store_id = stores.id), 0)) > 0.000001`)
	if result.Error != nil {
		logger.Error("Failed to reconcile store aggregates", result.Error)
		return 0, result.Error
	}

	logger.Info("Store aggregates reconciled", map[string]interface{}{
		"stores_corrected": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
