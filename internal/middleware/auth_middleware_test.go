package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-jwt-secret-for-middleware"

type fakeUsers map[uint]*model.User

func (f fakeUsers) FindByID(id uint) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[tokenID], nil
}

func setupMiddlewareTest(users fakeUsers, revocations RevocationChecker) (*gin.Engine, *AuthMiddleware) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	middleware := NewAuthMiddleware(testJWTSecret, users, revocations)
	return router, middleware
}

func generateTestToken(t *testing.T, user *model.User) *util.IssuedToken {
	token, err := util.GenerateToken(user.ID, user.Email, string(user.Role), user.StoreID, testJWTSecret, 15*time.Minute)
	require.NoError(t, err)
	return token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestAuthMiddleware_Authenticate_Success(t *testing.T) {
	storeID := uint(7)
	owner := &model.User{ID: 1, Email: "owner@example.com", Role: model.RoleStoreOwner, StoreID: &storeID}
	router, authMiddleware := setupMiddlewareTest(fakeUsers{1: owner}, nil)

	token := generateTestToken(t, owner)

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		user, _ := GetCurrentUser(c)
		claims, _ := GetTokenClaims(c)

		c.JSON(http.StatusOK, gin.H{
			"user_id":  userID,
			"role":     role,
			"store_id": *GetStoreID(c),
			"same":     user == owner,
			"jti":      claims.ID,
		})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["user_id"])
	assert.Equal(t, "store_owner", body["role"])
	assert.Equal(t, float64(7), body["store_id"])
	assert.Equal(t, true, body["same"])
	assert.Equal(t, token.ID, body["jti"])
}

func TestAuthMiddleware_Authenticate_Failures(t *testing.T) {
	user := &model.User{ID: 1, Email: "user@example.com", Role: model.RoleUser}
	valid := generateTestToken(t, user).Token
	expired, err := util.GenerateToken(user.ID, user.Email, string(user.Role), nil, testJWTSecret, -time.Minute)
	require.NoError(t, err)
	foreign, err := util.GenerateToken(user.ID, user.Email, string(user.Role), nil, "some-other-secret", time.Minute)
	require.NoError(t, err)
	ghost := generateTestToken(t, &model.User{ID: 99, Email: "ghost@example.com", Role: model.RoleUser}).Token

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"No token", "", "AUTH_UNAUTHORIZED"},
		{"Missing Bearer prefix", valid, "AUTH_TOKEN_INVALID"},
		{"Wrong scheme", "Basic " + valid, "AUTH_TOKEN_INVALID"},
		{"Garbage token", "Bearer not-a-jwt", "AUTH_TOKEN_INVALID"},
		{"Wrong secret", "Bearer " + foreign.Token, "AUTH_TOKEN_INVALID"},
		{"Expired token", "Bearer " + expired.Token, "AUTH_TOKEN_EXPIRED"},
		{"Deleted user", "Bearer " + ghost, "AUTH_USER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, authMiddleware := setupMiddlewareTest(fakeUsers{1: user}, nil)
			router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestAuthMiddleware_Authenticate_QueryToken(t *testing.T) {
	user := &model.User{ID: 1, Email: "user@example.com", Role: model.RoleUser}
	router, authMiddleware := setupMiddlewareTest(fakeUsers{1: user}, nil)
	token := generateTestToken(t, user)

	router.GET("/ws", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/ws?token="+token.Token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthMiddleware_Authenticate_RoleFromDatabase(t *testing.T) {
	user := &model.User{ID: 1, Email: "user@example.com", Role: model.RoleUser}
	token := generateTestToken(t, user)

	// promoted after the token was issued
	promoted := &model.User{ID: 1, Email: "user@example.com", Role: model.RoleAdmin}
	router, authMiddleware := setupMiddlewareTest(fakeUsers{1: promoted}, nil)

	router.GET("/admin", authMiddleware.Authenticate(), authMiddleware.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Authenticate_Revoked(t *testing.T) {
	user := &model.User{ID: 1, Email: "user@example.com", Role: model.RoleUser}
	token := generateTestToken(t, user)

	t.Run("Revoked token", func(t *testing.T) {
		revocations := &fakeRevocations{revoked: map[string]bool{token.ID: true}}
		router, authMiddleware := setupMiddlewareTest(fakeUsers{1: user}, revocations)
		router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_TOKEN_REVOKED", errorCode(t, w))
	})

	t.Run("Store unreachable", func(t *testing.T) {
		revocations := &fakeRevocations{err: errors.New("connection refused")}
		router, authMiddleware := setupMiddlewareTest(fakeUsers{1: user}, revocations)
		router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Email: "admin@example.com", Role: model.RoleAdmin},
		2: {ID: 2, Email: "user@example.com", Role: model.RoleUser},
		3: {ID: 3, Email: "owner@example.com", Role: model.RoleStoreOwner},
	}

	tests := []struct {
		name       string
		userID     uint
		roles      []model.UserRole
		wantStatus int
	}{
		{"Admin on admin route", 1, []model.UserRole{model.RoleAdmin}, http.StatusOK},
		{"User on admin route", 2, []model.UserRole{model.RoleAdmin}, http.StatusForbidden},
		{"Owner on owner or admin route", 3, []model.UserRole{model.RoleStoreOwner, model.RoleAdmin}, http.StatusOK},
		{"User on owner or admin route", 2, []model.UserRole{model.RoleStoreOwner, model.RoleAdmin}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, authMiddleware := setupMiddlewareTest(users, nil)
			router.GET("/test", authMiddleware.Authenticate(), authMiddleware.RequireRole(tt.roles...), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			token := generateTestToken(t, users[tt.userID])
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+token.Token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_RequireRole_WithoutAuthenticate(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest(fakeUsers{}, nil)
	router.GET("/test", authMiddleware.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
