package service

import (
	"sync"
	"testing"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/db"
	"github.com/ikkim/storerating-backend/pkg/util"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func init() {
	util.SetBcryptCost(bcrypt.MinCost)
}

const testPassword = "Secret@123"

type testEnv struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	storeRepo  repository.StoreRepository
	ratingRepo repository.RatingRepository
}

func setupServiceTest(t *testing.T) *testEnv {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	return &testEnv{
		db:         testDB,
		userRepo:   repository.NewUserRepository(testDB),
		storeRepo:  repository.NewStoreRepository(testDB),
		ratingRepo: repository.NewRatingRepository(testDB),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := util.HashPassword(testPassword)
	require.NoError(t, err)

	user := &model.User{
		Name:         "Fixture User With Long Name",
		Email:        email,
		PasswordHash: hash,
		Address:      "1 Fixture Road",
		Role:         role,
	}
	require.NoError(t, e.userRepo.Create(user))
	return user
}

func (e *testEnv) createStore(t *testing.T, name, email string) *model.Store {
	t.Helper()
	store := &model.Store{Name: name, Email: email, Address: "1 Market Street"}
	require.NoError(t, e.storeRepo.Create(store))
	return store
}

func (e *testEnv) assignStore(t *testing.T, owner *model.User, store *model.Store) {
	t.Helper()
	owner.StoreID = &store.ID
	require.NoError(t, e.userRepo.Update(owner))
}

func (e *testEnv) reloadStore(t *testing.T, id uint) *model.Store {
	t.Helper()
	store, err := e.storeRepo.FindByID(id)
	require.NoError(t, err)
	return store
}

// recordingPublisher captures published rating events
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RatingEvent
}

func (p *recordingPublisher) Publish(event model.RatingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []model.RatingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.RatingEvent(nil), p.events...)
}

// statementLog records locking reads as "lock:<table>" and deletes as
// "delete:<table>" in execution order
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

func (e *testEnv) logStatements(t *testing.T) *statementLog {
	t.Helper()
	log := &statementLog{}
	require.NoError(t, e.db.Callback().Query().After("gorm:query").Register("test:log_locks", func(tx *gorm.DB) {
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if _, ok := c.Expression.(clause.Locking); ok {
				log.add("lock:" + tx.Statement.Table)
			}
		}
	}))
	require.NoError(t, e.db.Callback().Delete().After("gorm:delete").Register("test:log_deletes", func(tx *gorm.DB) {
		log.add("delete:" + tx.Statement.Table)
	}))
	return log
}
