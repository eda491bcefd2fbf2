package service

import (
	"errors"
	"strings"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"gorm.io/gorm"
)

type StoreInput struct {
	Name    string
	Email   string
	Address string
}

// UpdateStoreInput is a partial update; nil fields are left unchanged
type UpdateStoreInput struct {
	Name    *string
	Email   *string
	Address *string
}

// StoreDetail is a store as seen by one viewer. UserRating is set for
// raters and Ratings for admins and the store's owner.
type StoreDetail struct {
	Store      *model.Store   `json:"store"`
	UserRating *model.Rating  `json:"user_rating,omitempty"`
	Ratings    []model.Rating `json:"ratings,omitempty"`
}

type StoreService interface {
	ListStores(actor *model.User, filter repository.StoreFilter) ([]model.Store, error)
	GetStore(actor *model.User, id uint) (*StoreDetail, error)
	CreateStore(actor *model.User, input StoreInput) (*model.Store, error)
	UpdateStore(id uint, input UpdateStoreInput) (*model.Store, error)
	DeleteStore(id uint) error
}

type storeService struct {
	db         *gorm.DB
	storeRepo  repository.StoreRepository
	userRepo   repository.UserRepository
	ratingRepo repository.RatingRepository
}

func NewStoreService(
	db *gorm.DB,
	storeRepo repository.StoreRepository,
	userRepo repository.UserRepository,
	ratingRepo repository.RatingRepository,
) StoreService {
	return &storeService{
		db:         db,
		storeRepo:  storeRepo,
		userRepo:   userRepo,
		ratingRepo: ratingRepo,
	}
}

func (s *storeService) ListStores(actor *model.User, filter repository.StoreFilter) ([]model.Store, error) {
	// Only raters see their own rating per row
	if actor != nil && actor.Role == model.RoleUser {
		filter.RaterID = actor.ID
	} else {
		filter.RaterID = 0
		filter.HasUserRating = nil
	}

	stores, err := s.storeRepo.FindAll(filter)
	if err != nil {
		logger.Error("Failed to list stores", err)
		return nil, apperrors.Internal(err)
	}
	return stores, nil
}

func (s *storeService) GetStore(actor *model.User, id uint) (*StoreDetail, error) {
	store, err := s.findStore(id)
	if err != nil {
		return nil, err
	}

	detail := &StoreDetail{Store: store}
	switch {
	case actor.Role == model.RoleUser:
		rating, err := s.ratingRepo.FindByUserAndStore(actor.ID, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal(err)
		}
		detail.UserRating = rating
	case actor.Role == model.RoleAdmin || actor.OwnsStore(id):
		ratings, err := s.ratingRepo.FindByStore(id, repository.RatingFilter{})
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		detail.Ratings = ratings
	}
	return detail, nil
}

// CreateStore adds a store. A store owner without a store becomes its
// owner in the same transaction.
func (s *storeService) CreateStore(actor *model.User, input StoreInput) (*model.Store, error) {
	email := model.NormalizeEmail(input.Email)
	logger.Info("Creating store", map[string]interface{}{
		"email":      email,
		"created_by": actor.ID,
		"role":       actor.Role,
	})

	var created *model.Store
	err := s.db.Transaction(func(tx *gorm.DB) error {
		storeRepo := s.storeRepo.WithTx(tx)
		userRepo := s.userRepo.WithTx(tx)

		var owner *model.User
		if actor.Role == model.RoleStoreOwner {
			current, err := userRepo.FindByID(actor.ID)
			if err != nil {
				return err
			}
			if current.StoreID != nil {
				return ErrStoreAlreadyManaged
			}
			owner = current
		}

		if err := s.ensureStoreEmailFree(storeRepo, email, 0); err != nil {
			return err
		}

		store := &model.Store{
			Name:    strings.TrimSpace(input.Name),
			Email:   email,
			Address: strings.TrimSpace(input.Address),
		}
		if err := storeRepo.Create(store); err != nil {
			return err
		}

		if owner != nil {
			owner.StoreID = &store.ID
			if err := userRepo.Update(owner); err != nil {
				return err
			}
		}

		var err error
		created, err = storeRepo.FindByID(store.ID)
		return err
	})
	if err != nil {
		return nil, fail(err, "create store")
	}

	logger.Info("Store created", map[string]interface{}{
		"store_id": created.ID,
	})
	return created, nil
}

func (s *storeService) UpdateStore(id uint, input UpdateStoreInput) (*model.Store, error) {
	if input.Name == nil && input.Email == nil && input.Address == nil {
		return nil, ErrNothingToUpdate
	}

	store, err := s.findStore(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		store.Name = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		store.Address = strings.TrimSpace(*input.Address)
	}
	if input.Email != nil {
		email := model.NormalizeEmail(*input.Email)
		if email != store.Email {
			if err := s.ensureStoreEmailFree(s.storeRepo, email, id); err != nil {
				return nil, fail(err, "update store")
			}
		}
		store.Email = email
	}

	if err := s.storeRepo.Update(store); err != nil {
		return nil, fail(err, "update store")
	}

	logger.Info("Store updated", map[string]interface{}{
		"store_id": id,
	})
	return s.findStore(id)
}

// DeleteStore removes the store, its ratings and its owner link
func (s *storeService) DeleteStore(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		storeRepo := s.storeRepo.WithTx(tx)

		if _, err := storeRepo.FindByIDForUpdate(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStoreNotFound
			}
			return err
		}
		if err := s.ratingRepo.WithTx(tx).DeleteByStore(id); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).DetachStore(id); err != nil {
			return err
		}
		return storeRepo.Delete(id)
	})
	if err != nil {
		return fail(err, "delete store")
	}

	logger.Info("Store deleted", map[string]interface{}{
		"store_id": id,
	})
	return nil
}

func (s *storeService) findStore(id uint) (*model.Store, error) {
	store, err := s.storeRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, apperrors.Internal(err)
	}
	return store, nil
}

// ensureStoreEmailFree fails when another store than exceptID uses email
func (s *storeService) ensureStoreEmailFree(storeRepo repository.StoreRepository, email string, exceptID uint) error {
	existing, err := storeRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return ErrStoreEmailExists
	}
	return nil
}
