package repository

import (
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"gorm.io/gorm"
)

type UserFilter struct {
	Name      string
	Email     string
	Address   string
	Role      model.UserRole
	Search    string
	SortBy    string
	SortOrder string
}

var userSortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"address":    "address",
	"role":       "role",
	"created_at": "created_at",
}

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(user *model.User) error
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	FindByStoreID(storeID uint) (*model.User, error)
	FindAll(filter UserFilter) ([]model.User, error)
	Update(user *model.User) error
	UpdatePassword(id uint, passwordHash string) error
	Delete(id uint) error
	DetachStore(storeID uint) error
	Count() (int64, error)
	CountByRole() (map[model.UserRole]int64, error)
	CountCreatedSince(since time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})

	if err := r.db.Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		logger.Debug("User lookup by ID failed", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", model.NormalizeEmail(email)).First(&user).Error; err != nil {
		logger.Debug("User lookup by email failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByStoreID(storeID uint) (*model.User, error) {
	var user model.User
	if err := r.db.Where("store_id = ?", storeID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(filter UserFilter) ([]model.User, error) {
	logger.Debug("Finding users", map[string]interface{}{
		"name":   filter.Name,
		"email":  filter.Email,
		"role":   filter.Role,
		"search": filter.Search,
	})

	query := r.db.Model(&model.User{})
	query = whereContains(query, "name", filter.Name)
	query = whereContains(query, "email", filter.Email)
	query = whereContains(query, "address", filter.Address)
	query = whereSearch(query, filter.Search, "name", "email", "address")
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	var users []model.User
	if err := query.Order(orderBy(userSortColumns, filter.SortBy, filter.SortOrder, "created_at", "ASC")).
		Find(&users).Error; err != nil {
		logger.Error("Failed to find users", err)
		return nil, err
	}

	logger.Debug("Users found", map[string]interface{}{
		"count": len(users),
	})
	return users, nil
}

func (r *userRepository) Update(user *model.User) error {
	logger.Debug("Updating user in database", map[string]interface{}{
		"user_id": user.ID,
	})

	if err := r.db.Save(user).Error; err != nil {
		logger.Error("Failed to update user in database", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return err
	}
	return nil
}

func (r *userRepository) UpdatePassword(id uint, passwordHash string) error {
	result := r.db.Model(&model.User{}).Where("id = ?", id).Update("password", passwordHash)
	if result.Error != nil {
		logger.Error("Failed to update password", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Delete(id uint) error {
	logger.Debug("Deleting user from database", map[string]interface{}{
		"user_id": id,
	})

	result := r.db.Delete(&model.User{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete user from database", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DetachStore clears store_id on whichever user owns storeID
func (r *userRepository) DetachStore(storeID uint) error {
	if err := r.db.Model(&model.User{}).
		Where("store_id = ?", storeID).
		Update("store_id", nil).Error; err != nil {
		logger.Error("Failed to detach store owner", err, map[string]interface{}{
			"store_id": storeID,
		})
		return err
	}
	return nil
}

func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

func (r *userRepository) CountByRole() (map[model.UserRole]int64, error) {
	var rows []struct {
		Role  model.UserRole
		Count int64
	}
	if err := r.db.Model(&model.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		logger.Error("Failed to count users by role", err)
		return nil, err
	}

	counts := make(map[model.UserRole]int64, len(model.AllRoles))
	for _, role := range model.AllRoles {
		counts[role] = 0
	}
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (r *userRepository) CountCreatedSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
