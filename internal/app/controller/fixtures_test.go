package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/app/service"
	"github.com/ikkim/storerating-backend/internal/db"
	"github.com/ikkim/storerating-backend/internal/middleware"
	"github.com/ikkim/storerating-backend/internal/validation"
	"github.com/ikkim/storerating-backend/internal/websocket"
	"github.com/ikkim/storerating-backend/pkg/util"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "Secret@123"
	testName      = "Controller Test User Name"
)

func init() {
	util.SetBcryptCost(bcrypt.MinCost)
	validation.Register()
}

// memoryRevocations is a shared in-process token blacklist
type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]bool)
	}
	m.revoked[tokenID] = true
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenID], nil
}

type reconcileCounter struct {
	total int64
}

func (r *reconcileCounter) RecordReconciled(n int64) { r.total += n }

type controllerEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	userRepo   repository.UserRepository
	storeRepo  repository.StoreRepository
	ratingRepo repository.RatingRepository
	ratings    service.RatingService
	hub        *websocket.Hub
	reconciled *reconcileCounter
}

func setupControllerTest(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	userRepo := repository.NewUserRepository(testDB)
	storeRepo := repository.NewStoreRepository(testDB)
	ratingRepo := repository.NewRatingRepository(testDB)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	revocations := &memoryRevocations{}
	authService := service.NewAuthService(userRepo, revocations, testJWTSecret, time.Hour)
	ratingService := service.NewRatingService(testDB, storeRepo, ratingRepo, hub)
	storeService := service.NewStoreService(testDB, storeRepo, userRepo, ratingRepo)
	userService := service.NewUserService(testDB, userRepo, storeRepo, ratingRepo)
	dashboardService := service.NewDashboardService(userRepo, storeRepo, ratingRepo, 5, 1)
	reportService := service.NewReportService(storeRepo, dashboardService, nil, nil)

	reconciled := &reconcileCounter{}
	authController := NewAuthController(authService)
	storeController := NewStoreController(storeService, ratingService)
	ratingController := NewRatingController(ratingService, hub, websocket.Upgrader([]string{"*"}))
	adminController := NewAdminController(userService, dashboardService, reportService, ratingService, reconciled)

	auth := middleware.NewAuthMiddleware(testJWTSecret, userRepo, revocations)
	authenticate := auth.Authenticate()

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())

	router.POST("/auth/register", authController.Register)
	router.POST("/auth/login", authController.Login)
	router.PUT("/auth/password", authenticate, authController.ChangePassword)
	router.POST("/auth/logout", authenticate, authController.Logout)
	router.GET("/auth/me", authenticate, authController.GetMe)

	router.GET("/stores", authenticate, storeController.ListStores)
	router.GET("/stores/:id", authenticate, storeController.GetStore)
	router.GET("/stores/:id/ratings", authenticate, storeController.ListRatings)
	router.POST("/stores", authenticate, auth.RequireRole(model.RoleStoreOwner, model.RoleAdmin), storeController.CreateStore)
	router.PUT("/stores/:id", authenticate, auth.RequireRole(model.RoleAdmin), storeController.UpdateStore)
	router.DELETE("/stores/:id", authenticate, auth.RequireRole(model.RoleAdmin), storeController.DeleteStore)

	router.POST("/ratings", authenticate, auth.RequireRole(model.RoleUser), ratingController.Submit)
	router.PUT("/ratings/:id", authenticate, auth.RequireRole(model.RoleUser), ratingController.Update)
	router.DELETE("/ratings/:id", authenticate, auth.RequireRole(model.RoleUser), ratingController.Delete)
	router.GET("/ratings/store/:storeId", authenticate, auth.RequireRole(model.RoleStoreOwner, model.RoleAdmin), ratingController.StoreRatings)
	router.GET("/ratings/user/:userId", authenticate, ratingController.UserRatings)
	router.GET("/ratings/user/:userId/store/:storeId", authenticate, ratingController.UserStoreRating)
	router.GET("/ratings/my-ratings", authenticate, auth.RequireRole(model.RoleUser), ratingController.MyRatings)
	router.GET("/ratings/my-store/summary", authenticate, auth.RequireRole(model.RoleStoreOwner), ratingController.MyStoreSummary)
	router.GET("/ratings/stats", authenticate, ratingController.Stats)
	router.GET("/ratings/live", authenticate, auth.RequireRole(model.RoleStoreOwner, model.RoleAdmin), ratingController.Live)

	admin := router.Group("/admin", authenticate, auth.RequireRole(model.RoleAdmin))
	admin.GET("/dashboard", adminController.Dashboard)
	admin.GET("/users", adminController.ListUsers)
	admin.POST("/users", adminController.CreateUser)
	admin.GET("/users/:id", adminController.GetUser)
	admin.PUT("/users/:id", adminController.UpdateUser)
	admin.DELETE("/users/:id", adminController.DeleteUser)
	admin.GET("/reports/stores", adminController.StoreReport)
	admin.POST("/reports/stores/archive", adminController.ArchiveStoreReport)
	admin.POST("/maintenance/reconcile", adminController.Reconcile)

	return &controllerEnv{
		router:     router,
		db:         testDB,
		userRepo:   userRepo,
		storeRepo:  storeRepo,
		ratingRepo: ratingRepo,
		ratings:    ratingService,
		hub:        hub,
		reconciled: reconciled,
	}
}

func (e *controllerEnv) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := util.HashPassword(testPassword)
	require.NoError(t, err)

	user := &model.User{
		Name:         testName,
		Email:        email,
		PasswordHash: hash,
		Address:      "1 Fixture Road",
		Role:         role,
	}
	require.NoError(t, e.userRepo.Create(user))
	return user
}

func (e *controllerEnv) createStore(t *testing.T, name, email string) *model.Store {
	t.Helper()
	store := &model.Store{Name: name, Email: email, Address: "1 Market Street"}
	require.NoError(t, e.storeRepo.Create(store))
	return store
}

func (e *controllerEnv) assignStore(t *testing.T, owner *model.User, store *model.Store) {
	t.Helper()
	owner.StoreID = &store.ID
	require.NoError(t, e.userRepo.Update(owner))
}

func tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	issued, err := util.GenerateToken(user.ID, user.Email, string(user.Role), user.StoreID, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return issued.Token
}

func (e *controllerEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type apiResponse struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// decodeData unmarshals the data envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	resp := decode(t, w)
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func fieldsOf(resp apiResponse) []string {
	fields := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}
