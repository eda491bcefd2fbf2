package model

import (
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is one user's score for one store. (user_id, store_id) is unique.
type Rating struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_ratings_user_store,priority:1" json:"user_id"`
	StoreID   uint      `gorm:"not null;uniqueIndex:idx_ratings_user_store,priority:2;index" json:"store_id"`
	Rating    int       `gorm:"not null;check:chk_ratings_rating,rating >= 1 AND rating <= 5" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Store *Store `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"store,omitempty"`
}

func (Rating) TableName() string {
	return "ratings"
}

// RatingEventType names a change published to live subscribers
type RatingEventType string

const (
	RatingSubmitted RatingEventType = "rating_submitted"
	RatingUpdated   RatingEventType = "rating_updated"
	RatingDeleted   RatingEventType = "rating_deleted"
)

// RatingEvent describes a committed rating change and the store's
// aggregates after it.
type RatingEvent struct {
	Type          RatingEventType `json:"type"`
	StoreID       uint            `json:"store_id"`
	RatingID      uint            `json:"rating_id"`
	UserID        uint            `json:"user_id"`
	Rating        int             `json:"rating"`
	AverageRating float64         `json:"average_rating"`
	TotalRatings  int64           `json:"total_ratings"`
	At            time.Time       `json:"at"`
}
