package repository

import (
	"testing"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func storeNames(stores []model.Store) []string {
	names := make([]string, 0, len(stores))
	for _, s := range stores {
		names = append(names, s.Name)
	}
	return names
}

func TestStoreRepository_CreateDuplicateEmail(t *testing.T) {
	repo := NewStoreRepository(setupTestDB(t))

	require.NoError(t, repo.Create(&model.Store{Name: "First", Email: "shop@example.com", Address: "1 Main"}))
	err := repo.Create(&model.Store{Name: "Second", Email: "shop@example.com", Address: "2 Main"})
	assert.Error(t, err)
}

func TestStoreRepository_BulkCreateSkipsExisting(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)
	createStore(t, testDB, "Existing", "existing@example.com", "1 Main")

	err := repo.BulkCreate([]model.Store{
		{Name: "Existing Again", Email: "existing@example.com", Address: "1 Main"},
		{Name: "Fresh", Email: "fresh@example.com", Address: "2 Main"},
	}, 100)
	require.NoError(t, err)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	existing, err := repo.FindByEmail("existing@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Existing", existing.Name)
}

func TestStoreRepository_FindAll(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	alpha := createStore(t, testDB, "Alpha Bakery", "alpha@example.com", "10 Baker Street")
	beta := createStore(t, testDB, "Beta Books", "beta@example.com", "20 Reading Road")
	createStore(t, testDB, "Gamma Grocer", "gamma@example.com", "30 Baker Street")

	rater := createUser(t, testDB, "A Rater Who Rates Things", "rater@example.com", model.RoleUser)
	createRating(t, testDB, rater.ID, alpha.ID, 5)
	createRating(t, testDB, rater.ID, beta.ID, 2)
	require.NoError(t, repo.RecomputeAggregates(alpha.ID))
	require.NoError(t, repo.RecomputeAggregates(beta.ID))

	minFour := 4.0
	rated := true
	unrated := false

	tests := []struct {
		name      string
		filter    StoreFilter
		wantNames []string
	}{
		{
			name:      "Default order is created_at descending",
			filter:    StoreFilter{},
			wantNames: []string{"Gamma Grocer", "Beta Books", "Alpha Bakery"},
		},
		{
			name:      "Address substring",
			filter:    StoreFilter{Address: "baker", SortBy: "name"},
			wantNames: []string{"Alpha Bakery", "Gamma Grocer"},
		},
		{
			name:      "Sort by name descending",
			filter:    StoreFilter{SortBy: "name", SortOrder: "desc"},
			wantNames: []string{"Gamma Grocer", "Beta Books", "Alpha Bakery"},
		},
		{
			name:      "Minimum average rating",
			filter:    StoreFilter{MinRating: &minFour},
			wantNames: []string{"Alpha Bakery"},
		},
		{
			name:      "Search matches email",
			filter:    StoreFilter{Search: "BETA@"},
			wantNames: []string{"Beta Books"},
		},
		{
			name:      "Stores the rater has rated",
			filter:    StoreFilter{RaterID: rater.ID, HasUserRating: &rated, SortBy: "name"},
			wantNames: []string{"Alpha Bakery", "Beta Books"},
		},
		{
			name:      "Stores the rater has not rated",
			filter:    StoreFilter{RaterID: rater.ID, HasUserRating: &unrated},
			wantNames: []string{"Gamma Grocer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores, err := repo.FindAll(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, storeNames(stores))
		})
	}
}

func TestStoreRepository_FindAllAttachesUserRating(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	rated := createStore(t, testDB, "Rated Shop", "rated@example.com", "1 Main")
	createStore(t, testDB, "Unrated Shop", "unrated@example.com", "2 Main")
	rater := createUser(t, testDB, "A Rater Who Rates Things", "rater@example.com", model.RoleUser)
	other := createUser(t, testDB, "Somebody Else Entirely", "other@example.com", model.RoleUser)
	createRating(t, testDB, rater.ID, rated.ID, 4)
	createRating(t, testDB, other.ID, rated.ID, 1)

	stores, err := repo.FindAll(StoreFilter{RaterID: rater.ID, SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, stores, 2)

	require.NotNil(t, stores[0].UserRating)
	assert.Equal(t, 4, *stores[0].UserRating)
	assert.Nil(t, stores[1].UserRating)
}

func TestStoreRepository_UpdateKeepsAggregates(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	store := createStore(t, testDB, "Old Name", "old@example.com", "1 Main")
	rater := createUser(t, testDB, "A Rater Who Rates Things", "rater@example.com", model.RoleUser)
	createRating(t, testDB, rater.ID, store.ID, 3)
	require.NoError(t, repo.RecomputeAggregates(store.ID))

	// store still carries zero aggregates in memory
	store.Name = "New Name"
	require.NoError(t, repo.Update(store))

	reloaded, err := repo.FindByID(store.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", reloaded.Name)
	assert.Equal(t, int64(1), reloaded.TotalRatings)
	assert.InDelta(t, 3.0, reloaded.AverageRating, 0.0001)
}

func TestStoreRepository_RecomputeAggregates(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	store := createStore(t, testDB, "Counted", "counted@example.com", "1 Main")
	for i, value := range []int{5, 4, 4} {
		u := createUser(t, testDB, "Rater Number Something Long", "r"+string(rune('a'+i))+"@example.com", model.RoleUser)
		createRating(t, testDB, u.ID, store.ID, value)
	}

	require.NoError(t, repo.RecomputeAggregates(store.ID))
	reloaded, err := repo.FindByID(store.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reloaded.TotalRatings)
	assert.InDelta(t, 13.0/3.0, reloaded.AverageRating, 0.0001)

	require.NoError(t, testDB.Where("store_id = ?", store.ID).Delete(&model.Rating{}).Error)
	require.NoError(t, repo.RecomputeAggregates(store.ID))
	reloaded, err = repo.FindByID(store.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.TotalRatings)
	assert.Equal(t, 0.0, reloaded.AverageRating)
}

func TestStoreRepository_ReconcileAggregates(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	drifted := createStore(t, testDB, "Drifted", "drifted@example.com", "1 Main")
	clean := createStore(t, testDB, "Clean", "clean@example.com", "2 Main")
	rater := createUser(t, testDB, "A Rater Who Rates Things", "rater@example.com", model.RoleUser)
	createRating(t, testDB, rater.ID, drifted.ID, 2)

	require.NoError(t, testDB.Model(&model.Store{}).Where("id = ?", drifted.ID).
		Updates(map[string]interface{}{"total_ratings": 9, "average_rating": 4.5}).Error)

	corrected, err := repo.ReconcileAggregates()
	require.NoError(t, err)
	assert.Equal(t, int64(1), corrected)

	reloaded, err := repo.FindByID(drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalRatings)
	assert.InDelta(t, 2.0, reloaded.AverageRating, 0.0001)

	untouched, err := repo.FindByID(clean.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), untouched.TotalRatings)

	corrected, err = repo.ReconcileAggregates()
	require.NoError(t, err)
	assert.Equal(t, int64(0), corrected)
}

func TestStoreRepository_ReconcileLocksStoresFirst(t *testing.T) {
	testDB := setupTestDB(t)
	drifted := createStore(t, testDB, "Drifted", "drifted@example.com", "1 Main")
	rater := createUser(t, testDB, "A Rater Who Rates Things", "rater@example.com", model.RoleUser)
	createRating(t, testDB, rater.ID, drifted.ID, 3)

	log := logStatements(t, testDB)

	var corrected int64
	err := testDB.Transaction(func(tx *gorm.DB) error {
		var err error
		corrected, err = NewStoreRepository(testDB).WithTx(tx).ReconcileAggregates()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), corrected)
	assert.Equal(t, []string{"lock:stores", "exec"}, log.Entries())
}

func TestStoreRepository_LockByIDs(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)
	first := createStore(t, testDB, "First", "first@example.com", "1 Main")

	log := logStatements(t, testDB)

	require.NoError(t, repo.LockByIDs(nil))
	assert.Empty(t, log.Entries())

	err := testDB.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).LockByIDs([]uint{first.ID + 100, first.ID})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:stores"}, log.Entries())
}

func TestStoreRepository_TopRated(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)

	seed := []struct {
		name  string
		avg   float64
		total int64
	}{
		{"Few Perfect", 5.0, 1},
		{"Many Great", 4.5, 10},
		{"Some Great", 4.5, 4},
		{"Unrated", 0, 0},
	}
	for i, s := range seed {
		store := createStore(t, testDB, s.name, "top"+string(rune('a'+i))+"@example.com", "1 Main")
		require.NoError(t, testDB.Model(store).
			Updates(map[string]interface{}{"average_rating": s.avg, "total_ratings": s.total}).Error)
	}

	top, err := repo.TopRated(1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Few Perfect", "Many Great", "Some Great"}, storeNames(top))

	top, err = repo.TopRated(3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Many Great"}, storeNames(top))
}

func TestStoreRepository_Delete(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewStoreRepository(testDB)
	store := createStore(t, testDB, "Doomed", "doomed@example.com", "1 Main")

	require.NoError(t, repo.Delete(store.ID))
	_, err := repo.FindByID(store.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Delete(store.ID), gorm.ErrRecordNotFound)
}
