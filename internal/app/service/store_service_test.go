package service

import (
	"testing"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStoreServiceTest(t *testing.T) (*testEnv, StoreService, RatingService) {
	env := setupServiceTest(t)
	stores := NewStoreService(env.db, env.storeRepo, env.userRepo, env.ratingRepo)
	ratings := NewRatingService(env.db, env.storeRepo, env.ratingRepo, nil)
	return env, stores, ratings
}

func strPtr(s string) *string { return &s }

func TestStoreService_CreateStore(t *testing.T) {
	env, svc, _ := setupStoreServiceTest(t)
	admin := env.createUser(t, "admin@example.com", model.RoleAdmin)
	owner := env.createUser(t, "owner@example.com", model.RoleStoreOwner)

	tests := []struct {
		name    string
		actor   *model.User
		input   StoreInput
		wantErr error
	}{
		{
			name:  "Admin creates store",
			actor: admin,
			input: StoreInput{Name: "Admin Shop", Email: "Admin.Shop@example.com", Address: "1 Main"},
		},
		{
			name:    "Duplicate email",
			actor:   admin,
			input:   StoreInput{Name: "Copycat", Email: "admin.shop@example.com", Address: "2 Main"},
			wantErr: ErrStoreEmailExists,
		},
		{
			name:  "Store owner creates first store",
			actor: owner,
			input: StoreInput{Name: "Owner Shop", Email: "owner.shop@example.com", Address: "3 Main"},
		},
		{
			name:    "Store owner creates second store",
			actor:   owner,
			input:   StoreInput{Name: "Second Shop", Email: "second.shop@example.com", Address: "4 Main"},
			wantErr: ErrStoreAlreadyManaged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := svc.CreateStore(tt.actor, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.NormalizeEmail(tt.input.Email), store.Email)
			assert.Zero(t, store.TotalRatings)
		})
	}

	reloaded, err := env.userRepo.FindByID(owner.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.StoreID)

	ownedStore := env.reloadStore(t, *reloaded.StoreID)
	assert.Equal(t, "Owner Shop", ownedStore.Name)
	require.NotNil(t, ownedStore.Owner)
	assert.Equal(t, owner.ID, ownedStore.Owner.ID)

	count, err := env.storeRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStoreService_ListStoresByRole(t *testing.T) {
	env, svc, ratings := setupStoreServiceTest(t)
	rated := env.createStore(t, "Rated", "rated@example.com")
	env.createStore(t, "Unrated", "unrated@example.com")
	rater := env.createUser(t, "rater@example.com", model.RoleUser)
	admin := env.createUser(t, "admin@example.com", model.RoleAdmin)

	_, err := ratings.Submit(rater.ID, rated.ID, 5)
	require.NoError(t, err)

	onlyRated := true
	stores, err := svc.ListStores(rater, repository.StoreFilter{HasUserRating: &onlyRated})
	require.NoError(t, err)
	require.Len(t, stores, 1)
	require.NotNil(t, stores[0].UserRating)
	assert.Equal(t, 5, *stores[0].UserRating)

	// the rater filter means nothing for admins
	stores, err = svc.ListStores(admin, repository.StoreFilter{HasUserRating: &onlyRated, SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Nil(t, stores[0].UserRating)
}

func TestStoreService_GetStoreByViewer(t *testing.T) {
	env, svc, ratings := setupStoreServiceTest(t)
	store := env.createStore(t, "Viewed", "viewed@example.com")
	other := env.createStore(t, "Other", "other@example.com")
	rater := env.createUser(t, "rater@example.com", model.RoleUser)
	admin := env.createUser(t, "admin@example.com", model.RoleAdmin)
	owner := env.createUser(t, "owner@example.com", model.RoleStoreOwner)
	env.assignStore(t, owner, store)

	_, err := ratings.Submit(rater.ID, store.ID, 3)
	require.NoError(t, err)

	detail, err := svc.GetStore(rater, store.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.UserRating)
	assert.Equal(t, 3, detail.UserRating.Rating)
	assert.Nil(t, detail.Ratings)

	detail, err = svc.GetStore(admin, store.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Ratings, 1)

	detail, err = svc.GetStore(owner, store.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Ratings, 1)

	detail, err = svc.GetStore(owner, other.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Ratings)

	_, err = svc.GetStore(admin, other.ID+100)
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStoreService_UpdateStore(t *testing.T) {
	env, svc, ratings := setupStoreServiceTest(t)
	store := env.createStore(t, "Before", "before@example.com")
	env.createStore(t, "Taken", "taken@example.com")
	rater := env.createUser(t, "rater@example.com", model.RoleUser)
	_, err := ratings.Submit(rater.ID, store.ID, 4)
	require.NoError(t, err)

	updated, err := svc.UpdateStore(store.ID, UpdateStoreInput{Name: strPtr("After"), Email: strPtr("AFTER@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, "after@example.com", updated.Email)
	assert.Equal(t, int64(1), updated.TotalRatings)

	_, err = svc.UpdateStore(store.ID, UpdateStoreInput{Email: strPtr("taken@example.com")})
	assert.ErrorIs(t, err, ErrStoreEmailExists)

	_, err = svc.UpdateStore(store.ID, UpdateStoreInput{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	_, err = svc.UpdateStore(store.ID+100, UpdateStoreInput{Name: strPtr("Ghost")})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStoreService_DeleteStoreCascades(t *testing.T) {
	env, svc, ratings := setupStoreServiceTest(t)
	store := env.createStore(t, "Doomed", "doomed@example.com")
	owner := env.createUser(t, "owner@example.com", model.RoleStoreOwner)
	env.assignStore(t, owner, store)
	rater := env.createUser(t, "rater@example.com", model.RoleUser)
	_, err := ratings.Submit(rater.ID, store.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStore(store.ID))

	count, err := env.ratingRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	reloaded, err := env.userRepo.FindByID(owner.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.StoreID)

	assert.ErrorIs(t, svc.DeleteStore(store.ID), ErrStoreNotFound)
}
