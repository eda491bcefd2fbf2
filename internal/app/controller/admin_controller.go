package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/app/service"
	"github.com/ikkim/storerating-backend/internal/middleware"
)

// ReconcileRecorder observes manual reconcile runs. Optional.
type ReconcileRecorder interface {
	RecordReconciled(n int64)
}

type AdminController struct {
	userService      service.UserService
	dashboardService service.DashboardService
	reportService    service.ReportService
	ratingService    service.RatingService
	recorder         ReconcileRecorder
}

func NewAdminController(
	userService service.UserService,
	dashboardService service.DashboardService,
	reportService service.ReportService,
	ratingService service.RatingService,
	recorder ReconcileRecorder,
) *AdminController {
	return &AdminController{
		userService:      userService,
		dashboardService: dashboardService,
		reportService:    reportService,
		ratingService:    ratingService,
		recorder:         recorder,
	}
}

type CreateUserRequest struct {
	Name     string         `json:"name" binding:"required,username"`
	Email    string         `json:"email" binding:"required,email,max=255"`
	Password string         `json:"password" binding:"required,password"`
	Address  string         `json:"address" binding:"required,notblank,max=400"`
	Role     model.UserRole `json:"role" binding:"required,oneof=admin user store_owner"`
	StoreID  *uint          `json:"store_id"`
}

type UpdateUserRequest struct {
	Name       *string         `json:"name" binding:"omitempty,username"`
	Email      *string         `json:"email" binding:"omitempty,email,max=255"`
	Address    *string         `json:"address" binding:"omitempty,notblank,max=400"`
	Role       *model.UserRole `json:"role" binding:"omitempty,oneof=admin user store_owner"`
	StoreID    *uint           `json:"store_id"`
	ClearStore bool            `json:"clear_store"`
}

// Dashboard returns platform-wide counters
// GET /api/admin/dashboard
func (ctrl *AdminController) Dashboard(c *gin.Context) {
	dashboard, err := ctrl.dashboardService.Dashboard()
	if err != nil {
		respondError(c, err, "dashboard")
		return
	}

	respondOK(c, http.StatusOK, "", dashboard)
}

// ListUsers returns users matching the query filters
// GET /api/admin/users
func (ctrl *AdminController) ListUsers(c *gin.Context) {
	users, err := ctrl.userService.ListUsers(repository.UserFilter{
		Name:      c.Query("name"),
		Email:     c.Query("email"),
		Address:   c.Query("address"),
		Role:      model.UserRole(c.Query("role")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		respondError(c, err, "list users")
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"users": users,
		"total": len(users),
	})
}

// GetUser returns a user with their store or ratings
// GET /api/admin/users/:id
func (ctrl *AdminController) GetUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := ctrl.userService.GetUser(userID)
	if err != nil {
		respondError(c, err, "get user")
		return
	}

	respondOK(c, http.StatusOK, "", detail)
}

// CreateUser creates a user with any role
// POST /api/admin/users
func (ctrl *AdminController) CreateUser(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ctrl.userService.CreateUser(service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Role:     req.Role,
		StoreID:  req.StoreID,
	})
	if err != nil {
		respondError(c, err, "create user")
		return
	}

	log.Info("User created by admin", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	respondOK(c, http.StatusCreated, "User created successfully", gin.H{"user": user})
}

// UpdateUser applies a partial update
// PUT /api/admin/users/:id
func (ctrl *AdminController) UpdateUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ctrl.userService.UpdateUser(userID, service.UpdateUserInput{
		Name:       req.Name,
		Email:      req.Email,
		Address:    req.Address,
		Role:       req.Role,
		StoreID:    req.StoreID,
		ClearStore: req.ClearStore,
	})
	if err != nil {
		respondError(c, err, "update user")
		return
	}

	respondOK(c, http.StatusOK, "User updated successfully", gin.H{"user": user})
}

// DeleteUser removes a user and their ratings
// DELETE /api/admin/users/:id
func (ctrl *AdminController) DeleteUser(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	actor, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.userService.DeleteUser(actor.ID, userID); err != nil {
		respondError(c, err, "delete user")
		return
	}

	log.Info("User deleted by admin", map[string]interface{}{
		"user_id":  userID,
		"admin_id": actor.ID,
	})
	respondOK(c, http.StatusOK, "User deleted successfully", nil)
}

// StoreReport streams the store workbook as an attachment
// GET /api/admin/reports/stores
func (ctrl *AdminController) StoreReport(c *gin.Context) {
	body, err := ctrl.reportService.StoreReport()
	if err != nil {
		respondError(c, err, "store report")
		return
	}

	filename := fmt.Sprintf("stores-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, service.ReportContentType, body)
}

// ArchiveStoreReport uploads the store workbook to object storage
// POST /api/admin/reports/stores/archive
func (ctrl *AdminController) ArchiveStoreReport(c *gin.Context) {
	archived, err := ctrl.reportService.ArchiveStoreReport(c.Request.Context())
	if err != nil {
		respondError(c, err, "archive store report")
		return
	}

	respondOK(c, http.StatusCreated, "Report archived successfully", archived)
}

// Reconcile recomputes drifted store aggregates
// POST /api/admin/maintenance/reconcile
func (ctrl *AdminController) Reconcile(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	corrected, err := ctrl.ratingService.ReconcileAggregates()
	if err != nil {
		respondError(c, err, "reconcile aggregates")
		return
	}
	if ctrl.recorder != nil {
		ctrl.recorder.RecordReconciled(corrected)
	}

	log.Info("Aggregates reconciled", map[string]interface{}{
		"stores_updated": corrected,
	})
	respondOK(c, http.StatusOK, "Aggregates reconciled", gin.H{"stores_updated": corrected})
}
