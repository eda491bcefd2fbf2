package repository

import (
	"sync"
	"testing"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

func createUser(t *testing.T, testDB *gorm.DB, name, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "hashedpassword",
		Address:      "1 Test Street",
		Role:         role,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createStore(t *testing.T, testDB *gorm.DB, name, email, address string) *model.Store {
	t.Helper()
	store := &model.Store{
		Name:    name,
		Email:   email,
		Address: address,
	}
	require.NoError(t, testDB.Omit("Owner").Create(store).Error)
	return store
}

func createRating(t *testing.T, testDB *gorm.DB, userID, storeID uint, value int) *model.Rating {
	t.Helper()
	rating := &model.Rating{UserID: userID, StoreID: storeID, Rating: value}
	require.NoError(t, testDB.Omit("User", "Store").Create(rating).Error)
	return rating
}

// statementLog records, in order, locking reads as "lock:<table>" and raw
// statements as "exec"
type statementLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *statementLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *statementLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func logStatements(t *testing.T, testDB *gorm.DB) *statementLog {
	t.Helper()
	log := &statementLog{}
	require.NoError(t, testDB.Callback().Query().After("gorm:query").Register("test:log_locks", func(tx *gorm.DB) {
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if _, ok := c.Expression.(clause.Locking); ok {
				log.add("lock:" + tx.Statement.Table)
			}
		}
	}))
	require.NoError(t, testDB.Callback().Raw().After("gorm:raw").Register("test:log_exec", func(tx *gorm.DB) {
		log.add("exec")
	}))
	return log
}
