package controller

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/internal/app/model"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/internal/middleware"
	"github.com/ikkim/storerating-backend/internal/validation"
)

// SuccessResponse is the body of every successful JSON response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondError logs err with the request logger and writes the error body
func respondError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)
	appErr := apperrors.From(err, context)

	if appErr.Kind == apperrors.KindInternal {
		log.Error("Request failed: "+context, err)
	} else {
		log.Debug("Request rejected: "+context, map[string]interface{}{
			"code": appErr.Code,
		})
	}
	apperrors.Respond(c, appErr, context)
}

// bindJSON binds the body into req, answering 400 with field errors on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log := middleware.GetLoggerFromContext(c)
		log.Warn("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		if fields, ok := validation.FieldErrors(err); ok {
			apperrors.RespondWithValidationError(c, fields)
			return false
		}
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return false
	}
	return true
}

// parseIDParam reads a positive integer path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func invalidQuery(c *gin.Context, field, message string) {
	apperrors.RespondWithValidationError(c, []apperrors.FieldError{{Field: field, Message: message}})
}

// queryUint reads an optional positive integer query parameter
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		invalidQuery(c, name, name+" must be a positive integer")
		return 0, false
	}
	return uint(v), true
}

// queryRatingBound reads an optional rating bound in [1,5]
func queryRatingBound(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < model.MinRating || v > model.MaxRating {
		invalidQuery(c, name, name+" must be an integer between 1 and 5")
		return 0, false
	}
	return v, true
}

// currentUser returns the user loaded by the auth middleware
func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		apperrors.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return user, true
}
