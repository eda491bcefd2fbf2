package service

import (
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
)

type UserCounts struct {
	Total         int64                    `json:"total"`
	ByRole        map[model.UserRole]int64 `json:"byRole"`
	RecentSignups int64                    `json:"recentSignups"`
}

type StoreCounts struct {
	Total int64 `json:"total"`
}

type RatingCounts struct {
	Total  int64 `json:"total"`
	Recent int64 `json:"recent"`
}

type Dashboard struct {
	Users     UserCounts    `json:"users"`
	Stores    StoreCounts   `json:"stores"`
	Ratings   RatingCounts  `json:"ratings"`
	TopStores []model.Store `json:"topStores"`
}

type DashboardService interface {
	Dashboard() (*Dashboard, error)
}

type dashboardService struct {
	userRepo      repository.UserRepository
	storeRepo     repository.StoreRepository
	ratingRepo    repository.RatingRepository
	topLimit      int
	topMinRatings int
	now           func() time.Time
}

func NewDashboardService(
	userRepo repository.UserRepository,
	storeRepo repository.StoreRepository,
	ratingRepo repository.RatingRepository,
	topLimit, topMinRatings int,
) DashboardService {
	if topLimit <= 0 {
		topLimit = 5
	}
	if topMinRatings <= 0 {
		topMinRatings = 1
	}
	return &dashboardService{
		userRepo:      userRepo,
		storeRepo:     storeRepo,
		ratingRepo:    ratingRepo,
		topLimit:      topLimit,
		topMinRatings: topMinRatings,
		now:           time.Now,
	}
}

func (s *dashboardService) Dashboard() (*Dashboard, error) {
	since := s.now().Add(-recentWindow)
	var (
		d   Dashboard
		err error
	)

	if d.Users.Total, err = s.userRepo.Count(); err != nil {
		return nil, s.failed(err)
	}
	if d.Users.ByRole, err = s.userRepo.CountByRole(); err != nil {
		return nil, s.failed(err)
	}
	if d.Users.RecentSignups, err = s.userRepo.CountCreatedSince(since); err != nil {
		return nil, s.failed(err)
	}
	if d.Stores.Total, err = s.storeRepo.Count(); err != nil {
		return nil, s.failed(err)
	}
	if d.Ratings.Total, err = s.ratingRepo.Count(); err != nil {
		return nil, s.failed(err)
	}
	if d.Ratings.Recent, err = s.ratingRepo.CountSince(since); err != nil {
		return nil, s.failed(err)
	}
	if d.TopStores, err = s.storeRepo.TopRated(s.topMinRatings, s.topLimit); err != nil {
		return nil, s.failed(err)
	}

	return &d, nil
}

func (s *dashboardService) failed(err error) error {
	logger.Error("Failed to build dashboard", err)
	return apperrors.Internal(err)
}
