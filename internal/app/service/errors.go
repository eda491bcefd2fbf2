package service

import (
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
)

// Sentinel errors returned by services. They compare with errors.Is by
// kind and code, so wrapped copies still match.
var (
	ErrEmailAlreadyExists = apperrors.ConflictError(apperrors.AuthEmailAlreadyExists, "User with this email already exists")
	ErrInvalidCredentials = apperrors.Authentication(apperrors.AuthInvalidCredentials, "Invalid email or password")
	ErrWrongPassword      = apperrors.Validation(apperrors.AuthWrongPassword, "Current password is incorrect")
	ErrUserNotFound       = apperrors.NotFoundError(apperrors.UserNotFound, "User not found")
	ErrSelfDelete         = apperrors.Validation(apperrors.ValidationSelfDelete, "You cannot delete your own account")
	ErrNothingToUpdate    = apperrors.Validation(apperrors.ValidationRequired, "No fields to update")
	ErrInvalidName        = apperrors.Validation(apperrors.ValidationInvalidInput, "Invalid name",
		apperrors.FieldError{Field: "name", Message: "Name must be between 20 and 60 characters"})
	ErrInvalidRole        = apperrors.Validation(apperrors.ValidationInvalidInput, "Invalid role",
		apperrors.FieldError{Field: "role", Message: "role must be one of: admin, user, store_owner"})

	ErrStoreNotFound       = apperrors.NotFoundError(apperrors.StoreNotFound, "Store not found")
	ErrInvalidStoreID      = apperrors.Validation(apperrors.ValidationInvalidID, "Invalid store ID")
	ErrStoreEmailExists    = apperrors.ConflictError(apperrors.StoreEmailExists, "Store with this email already exists")
	ErrStoreAlreadyOwned   = apperrors.ConflictError(apperrors.StoreAlreadyOwned, "Store already has an owner")
	ErrStoreAlreadyManaged = apperrors.ConflictError(apperrors.StoreAlreadyManaged, "You already have a store associated with your account")
	ErrStoreNotAssigned    = apperrors.Validation(apperrors.StoreNotAssigned, "No store associated with this account")
	ErrNotStoreOwner       = apperrors.Authorization(apperrors.AuthzOwnerOnly, "Access denied - you can only view ratings for your own store")

	ErrRatingNotFound = apperrors.NotFoundError(apperrors.RatingNotFound, "Rating not found or access denied")
	ErrInvalidRating  = apperrors.Validation(apperrors.RatingInvalidValue, "Rating must be between 1 and 5",
		apperrors.FieldError{Field: "rating", Message: "Rating must be an integer between 1 and 5"})

	ErrForbidden          = apperrors.Authorization(apperrors.AuthzForbidden, "Access denied")
	ErrStorageUnavailable = apperrors.New(apperrors.KindUnavailable, apperrors.InternalConfigError, "Report storage is not configured")
)

// fail converts err into an AppError. Internal failures are logged at
// error level, rejected requests at warn.
func fail(err error, context string, fields ...map[string]interface{}) error {
	appErr := apperrors.From(err, context)
	if appErr.Kind == apperrors.KindInternal {
		logger.Error("Failed to "+context, err, fields...)
		return appErr
	}

	logFields := map[string]interface{}{"code": appErr.Code}
	for _, f := range fields {
		for k, v := range f {
			logFields[k] = v
		}
	}
	logger.Warn("Rejected "+context, logFields)
	return appErr
}
