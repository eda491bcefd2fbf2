package model

import (
	"time"
)

type Store struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"size:255;not null;index" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Address       string    `gorm:"size:400;not null" json:"address"`
	AverageRating float64   `gorm:"not null;default:0" json:"average_rating"` // AVG(ratings.rating), kept in sync on every rating write
	TotalRatings  int64     `gorm:"not null;default:0" json:"total_ratings"`  // COUNT(ratings)
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Owner *User `gorm:"foreignKey:StoreID;constraint:OnDelete:SET NULL" json:"owner,omitempty"`

	// Filled by listing queries for the requesting user; never migrated
	UserRating *int `gorm:"->;-:migration" json:"user_rating,omitempty"`
}

func (Store) TableName() string {
	return "stores"
}
