package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is the classified, client-safe view of an error
type ErrorInfo struct {
	Kind    Kind
	Code    string // see codes.go
	Message string
}

// ParseError classifies database and driver errors. Messages never echo
// SQL or constraint internals back to the client.
// Handles both PostgreSQL and SQLite wording.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Kind:    KindInternal,
			Code:    InternalServerError,
			Message: getDefaultErrorMessage(context),
		}
	}

	errStr := err.Error()
	errStrLower := strings.ToLower(errStr)

	// 1. GORM sentinels
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return getNotFoundInfo(context)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return parseDuplicateKeyError(errStr, context)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return parseForeignKeyError(errStr, context)
	}

	// 2. Unique constraint (pg 23505 / sqlite UNIQUE constraint failed)
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return parseDuplicateKeyError(errStr, context)
	}

	// 3. Foreign key (pg 23503)
	if strings.Contains(errStrLower, "foreign key constraint") {
		return parseForeignKeyError(errStr, context)
	}

	// 4. Not null (pg 23502)
	if strings.Contains(errStrLower, "not-null constraint") || strings.Contains(errStrLower, "not null constraint") {
		return parseNotNullError(errStr)
	}

	// 5. Check constraint (pg 23514)
	if strings.Contains(errStrLower, "check constraint") {
		return parseCheckConstraintError(errStr)
	}

	// 6. Connectivity
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Kind:    KindInternal,
			Code:    InternalDatabaseError,
			Message: "A backing service is unavailable. Please try again later",
		}
	}

	return ErrorInfo{
		Kind:    KindInternal,
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errStr string, context string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "ratings") || strings.Contains(errLower, "idx_ratings_user_store") {
		return ErrorInfo{
			Kind:    KindConflict,
			Code:    RatingAlreadyExists,
			Message: "You have already rated this store",
		}
	}

	if strings.Contains(errLower, "users.store_id") || strings.Contains(errLower, "idx_users_store_id") {
		return ErrorInfo{
			Kind:    KindConflict,
			Code:    StoreAlreadyOwned,
			Message: "Store already has an owner",
		}
	}

	if strings.Contains(errLower, "stores.email") || strings.Contains(errLower, "idx_stores_email") {
		return ErrorInfo{
			Kind:    KindConflict,
			Code:    StoreEmailExists,
			Message: "Store with this email already exists",
		}
	}

	if strings.Contains(errLower, "users.email") || strings.Contains(errLower, "idx_users_email") {
		return ErrorInfo{
			Kind:    KindConflict,
			Code:    AuthEmailAlreadyExists,
			Message: "User with this email already exists",
		}
	}

	if strings.Contains(errLower, "email") {
		if strings.Contains(strings.ToLower(context), "store") {
			return ErrorInfo{Kind: KindConflict, Code: StoreEmailExists, Message: "Store with this email already exists"}
		}
		return ErrorInfo{Kind: KindConflict, Code: AuthEmailAlreadyExists, Message: "User with this email already exists"}
	}

	return ErrorInfo{
		Kind:    KindConflict,
		Code:    ResourceAlreadyExists,
		Message: "Resource already exists",
	}
}

func parseForeignKeyError(errStr string, context string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	// Delete blocked by referencing rows
	if strings.Contains(errLower, "still referenced") {
		return ErrorInfo{
			Kind:    KindConflict,
			Code:    ResourceConflict,
			Message: "Resource is still referenced by other records",
		}
	}

	if strings.Contains(errLower, "store_id") || strings.Contains(errLower, "fk_stores") ||
		strings.Contains(strings.ToLower(context), "store") {
		return ErrorInfo{
			Kind:    KindNotFound,
			Code:    StoreNotFound,
			Message: "Store not found",
		}
	}
	if strings.Contains(errLower, "user_id") || strings.Contains(errLower, "fk_users") {
		return ErrorInfo{
			Kind:    KindNotFound,
			Code:    UserNotFound,
			Message: "User not found",
		}
	}

	return ErrorInfo{
		Kind:    KindNotFound,
		Code:    ResourceNotFound,
		Message: "Referenced resource not found",
	}
}

func parseNotNullError(errStr string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	for _, field := range []string{"email", "password", "name", "address", "rating"} {
		if strings.Contains(errLower, field) {
			return ErrorInfo{
				Kind:    KindValidation,
				Code:    ValidationRequired,
				Message: strings.ToUpper(field[:1]) + field[1:] + " is required",
			}
		}
	}

	return ErrorInfo{
		Kind:    KindValidation,
		Code:    ValidationRequired,
		Message: "A required field is missing",
	}
}

func parseCheckConstraintError(errStr string) ErrorInfo {
	if strings.Contains(strings.ToLower(errStr), "rating") {
		return ErrorInfo{
			Kind:    KindValidation,
			Code:    RatingInvalidValue,
			Message: "Rating must be an integer between 1 and 5",
		}
	}

	return ErrorInfo{
		Kind:    KindValidation,
		Code:    ValidationInvalidInput,
		Message: "Invalid input",
	}
}

func getNotFoundInfo(context string) ErrorInfo {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "rating"):
		return ErrorInfo{Kind: KindNotFound, Code: RatingNotFound, Message: "Rating not found"}
	case strings.Contains(contextLower, "store"):
		return ErrorInfo{Kind: KindNotFound, Code: StoreNotFound, Message: "Store not found"}
	case strings.Contains(contextLower, "user"):
		return ErrorInfo{Kind: KindNotFound, Code: UserNotFound, Message: "User not found"}
	}

	return ErrorInfo{Kind: KindNotFound, Code: ResourceNotFound, Message: "Requested resource not found"}
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"):
		return "Failed to create resource. Please try again later"
	case strings.Contains(contextLower, "update"):
		return "Failed to update resource. Please try again later"
	case strings.Contains(contextLower, "delete"):
		return "Failed to delete resource. Please try again later"
	}

	return "An internal error occurred. Please try again later"
}
