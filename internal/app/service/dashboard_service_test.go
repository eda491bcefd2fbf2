package service

import (
	"testing"
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardService_Dashboard(t *testing.T) {
	env := setupServiceTest(t)
	ratings := NewRatingService(env.db, env.storeRepo, env.ratingRepo, nil)
	svc := NewDashboardService(env.userRepo, env.storeRepo, env.ratingRepo, 2, 1)

	env.createUser(t, "admin@example.com", model.RoleAdmin)
	env.createUser(t, "owner@example.com", model.RoleStoreOwner)
	alice := env.createUser(t, "alice@example.com", model.RoleUser)
	bob := env.createUser(t, "bob@example.com", model.RoleUser)

	best := env.createStore(t, "Best", "best@example.com")
	good := env.createStore(t, "Good", "good@example.com")
	fair := env.createStore(t, "Fair", "fair@example.com")
	env.createStore(t, "Unrated", "unrated@example.com")

	submit := func(userID, storeID uint, value int) {
		_, err := ratings.Submit(userID, storeID, value)
		require.NoError(t, err)
	}
	submit(alice.ID, best.ID, 5)
	submit(alice.ID, good.ID, 4)
	submit(bob.ID, good.ID, 4)
	submit(bob.ID, fair.ID, 3)

	d, err := svc.Dashboard()
	require.NoError(t, err)

	assert.Equal(t, int64(4), d.Users.Total)
	assert.Equal(t, map[model.UserRole]int64{
		model.RoleAdmin:      1,
		model.RoleUser:       2,
		model.RoleStoreOwner: 1,
	}, d.Users.ByRole)
	assert.Equal(t, int64(4), d.Users.RecentSignups)
	assert.Equal(t, int64(4), d.Stores.Total)
	assert.Equal(t, int64(4), d.Ratings.Total)
	assert.Equal(t, int64(4), d.Ratings.Recent)

	require.Len(t, d.TopStores, 2)
	assert.Equal(t, best.ID, d.TopStores[0].ID)
	assert.Equal(t, good.ID, d.TopStores[1].ID)
}

func TestDashboardService_RecentWindow(t *testing.T) {
	env := setupServiceTest(t)
	svc := NewDashboardService(env.userRepo, env.storeRepo, env.ratingRepo, 0, 0).(*dashboardService)
	env.createUser(t, "old@example.com", model.RoleUser)

	// pretend we are looking back from two months ahead
	svc.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }

	d, err := svc.Dashboard()
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Users.Total)
	assert.Equal(t, int64(0), d.Users.RecentSignups)
	assert.Empty(t, d.TopStores)
	assert.Equal(t, 5, svc.topLimit)
}
