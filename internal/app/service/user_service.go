package service

import (
	"errors"
	"strings"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"github.com/ikkim/storerating-backend/pkg/util"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	Role     model.UserRole
	StoreID  *uint
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
// ClearStore detaches a store owner from their store.
type UpdateUserInput struct {
	Name       *string
	Email      *string
	Address    *string
	Role       *model.UserRole
	StoreID    *uint
	ClearStore bool
}

// UserDetail is a user as shown to admins. Store owners carry their store
// and its ratings; raters carry the ratings they gave.
type UserDetail struct {
	User         *model.User    `json:"user"`
	Store        *model.Store   `json:"store,omitempty"`
	StoreRatings []model.Rating `json:"store_ratings,omitempty"`
	UserRatings  []model.Rating `json:"user_ratings,omitempty"`
}

type UserService interface {
	ListUsers(filter repository.UserFilter) ([]model.User, error)
	GetUser(id uint) (*UserDetail, error)
	CreateUser(input CreateUserInput) (*model.User, error)
	UpdateUser(id uint, input UpdateUserInput) (*model.User, error)
	DeleteUser(actorID, id uint) error
}

type userService struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	storeRepo  repository.StoreRepository
	ratingRepo repository.RatingRepository
}

func NewUserService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	storeRepo repository.StoreRepository,
	ratingRepo repository.RatingRepository,
) UserService {
	return &userService{
		db:         db,
		userRepo:   userRepo,
		storeRepo:  storeRepo,
		ratingRepo: ratingRepo,
	}
}

func (s *userService) ListUsers(filter repository.UserFilter) ([]model.User, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, ErrInvalidRole
	}

	users, err := s.userRepo.FindAll(filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

func (s *userService) GetUser(id uint) (*UserDetail, error) {
	user, err := s.findUser(s.userRepo, id)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{User: user}
	switch {
	case user.Role == model.RoleStoreOwner && user.StoreID != nil:
		store, err := s.storeRepo.FindByID(*user.StoreID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal(err)
		}
		if store != nil {
			detail.Store = store
			detail.StoreRatings, err = s.ratingRepo.FindByStore(store.ID, repository.RatingFilter{})
			if err != nil {
				return nil, apperrors.Internal(err)
			}
		}
	case user.Role == model.RoleUser:
		detail.UserRatings, err = s.ratingRepo.FindByUser(user.ID, repository.RatingFilter{
			SortBy:    "updated_at",
			SortOrder: repository.SortDesc,
		})
		if err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return detail, nil
}

func (s *userService) CreateUser(input CreateUserInput) (*model.User, error) {
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	name := model.NormalizeName(input.Name)
	if !model.ValidName(name) {
		return nil, ErrInvalidName
	}

	email := model.NormalizeEmail(input.Email)
	logger.Info("Admin creating user", map[string]interface{}{
		"email": email,
		"role":  input.Role,
	})

	hashedPassword, err := util.HashPassword(input.Password)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		Address:      strings.TrimSpace(input.Address),
		Role:         input.Role,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)

		if err := s.ensureEmailFree(userRepo, email, 0); err != nil {
			return err
		}
		if input.Role == model.RoleStoreOwner && input.StoreID != nil {
			if err := s.ensureStoreAssignable(tx, *input.StoreID, 0); err != nil {
				return err
			}
			user.StoreID = input.StoreID
		}
		return userRepo.Create(user)
	})
	if err != nil {
		return nil, fail(err, "create user")
	}

	logger.Info("User created by admin", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, nil
}

func (s *userService) UpdateUser(id uint, input UpdateUserInput) (*model.User, error) {
	if input.Name == nil && input.Email == nil && input.Address == nil &&
		input.Role == nil && input.StoreID == nil && !input.ClearStore {
		return nil, ErrNothingToUpdate
	}
	if input.Role != nil && !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if input.Name != nil && !model.ValidName(*input.Name) {
		return nil, ErrInvalidName
	}

	var updated *model.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)

		user, err := s.findUser(userRepo, id)
		if err != nil {
			return err
		}

		if input.Name != nil {
			user.Name = model.NormalizeName(*input.Name)
		}
		if input.Address != nil {
			user.Address = strings.TrimSpace(*input.Address)
		}
		if input.Email != nil {
			email := model.NormalizeEmail(*input.Email)
			if email != user.Email {
				if err := s.ensureEmailFree(userRepo, email, id); err != nil {
					return err
				}
			}
			user.Email = email
		}
		if input.Role != nil {
			user.Role = *input.Role
		}

		switch {
		case user.Role != model.RoleStoreOwner || input.ClearStore:
			user.StoreID = nil
		case input.StoreID != nil:
			if err := s.ensureStoreAssignable(tx, *input.StoreID, id); err != nil {
				return err
			}
			user.StoreID = input.StoreID
		}

		if err := userRepo.Update(user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, fail(err, "update user", map[string]interface{}{"user_id": id})
	}

	logger.Info("User updated by admin", map[string]interface{}{
		"user_id": id,
	})
	return updated, nil
}

// DeleteUser removes a user and their ratings, then recomputes the
// aggregates of every store they had rated.
func (s *userService) DeleteUser(actorID, id uint) error {
	if actorID == id {
		return ErrSelfDelete
	}

	var affected []uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		storeRepo := s.storeRepo.WithTx(tx)

		if _, err := s.findUser(userRepo, id); err != nil {
			return err
		}

		ratingRepo := s.ratingRepo.WithTx(tx)

		// Lock the rated stores before their ratings change
		rated, err := ratingRepo.StoreIDsByUser(id)
		if err != nil {
			return err
		}
		if err := storeRepo.LockByIDs(rated); err != nil {
			return err
		}

		storeIDs, err := ratingRepo.DeleteByUser(id)
		if err != nil {
			return err
		}
		if err := userRepo.Delete(id); err != nil {
			return err
		}
		// A rating written between the listing and the delete adds a store
		if err := storeRepo.LockByIDs(storeIDs); err != nil {
			return err
		}
		for _, storeID := range storeIDs {
			if err := storeRepo.RecomputeAggregates(storeID); err != nil {
				return err
			}
		}
		affected = storeIDs
		return nil
	})
	if err != nil {
		return fail(err, "delete user", map[string]interface{}{"user_id": id})
	}

	logger.Info("User deleted by admin", map[string]interface{}{
		"user_id":         id,
		"deleted_by":      actorID,
		"stores_affected": len(affected),
	})
	return nil
}

func (s *userService) findUser(userRepo repository.UserRepository, id uint) (*model.User, error) {
	user, err := userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ensureEmailFree(userRepo repository.UserRepository, email string, exceptID uint) error {
	existing, err := userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return ErrEmailAlreadyExists
	}
	return nil
}

// ensureStoreAssignable checks that storeID exists and has no owner other than exceptUserID
func (s *userService) ensureStoreAssignable(tx *gorm.DB, storeID, exceptUserID uint) error {
	if _, err := s.storeRepo.WithTx(tx).FindByIDForUpdate(storeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidStoreID
		}
		return err
	}

	owner, err := s.userRepo.WithTx(tx).FindByStoreID(storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if owner.ID != exceptUserID {
		return ErrStoreAlreadyOwned
	}
	return nil
}
