package model

import (
	"strings"
	"unicode/utf8"
	"time"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleUser       UserRole = "user"
	RoleStoreOwner UserRole = "store_owner"
)

// AllRoles lists every role in display order
var AllRoles = []UserRole{RoleAdmin, RoleUser, RoleStoreOwner}

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleStoreOwner:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Name         string    `gorm:"size:60;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"` // stored lower-cased
	PasswordHash string    `gorm:"column:password;not null" json:"-"`
	Address      string    `gorm:"size:400;not null" json:"address"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	StoreID      *uint     `gorm:"uniqueIndex" json:"store_id"` // only set for store owners
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// OwnsStore reports whether u is the owner of storeID
func (u *User) OwnsStore(storeID uint) bool {
	return u.Role == RoleStoreOwner && u.StoreID != nil && *u.StoreID == storeID
}

// NormalizeEmail trims and lower-cases an address before it is stored or compared
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const (
	NameMinLength = 20
	NameMaxLength = 60
)

// NormalizeName trims surrounding whitespace from a display name
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// ValidName reports whether the trimmed name has an allowed length
func ValidName(name string) bool {
	n := utf8.RuneCountInString(NormalizeName(name))
	return n >= NameMinLength && n <= NameMaxLength
}
