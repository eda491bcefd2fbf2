package errors

// Error codes returned in the "code" field of every error body.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to UI messages.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email/password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthUserGone           = "AUTH_USER_NOT_FOUND" // token subject no longer exists
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthWrongPassword      = "AUTH_WRONG_CURRENT_PASSWORD"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzOwnerOnly = "AUTHZ_OWNER_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"
	ValidationSelfDelete   = "VALIDATION_SELF_DELETE"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Users (USER_) ====================
	UserNotFound = "USER_NOT_FOUND"

	// ==================== Stores (STORE_) ====================
	StoreNotFound       = "STORE_NOT_FOUND"
	StoreEmailExists    = "STORE_EMAIL_EXISTS"
	StoreAlreadyOwned   = "STORE_ALREADY_OWNED"   // store has another owner
	StoreAlreadyManaged = "STORE_ALREADY_MANAGED" // owner already has a store
	StoreNotAssigned    = "STORE_NOT_ASSIGNED"    // owner has no store yet

	// ==================== Ratings (RATING_) ====================
	RatingNotFound      = "RATING_NOT_FOUND"
	RatingInvalidValue  = "RATING_INVALID_VALUE"
	RatingAlreadyExists = "RATING_ALREADY_EXISTS"

	// ==================== Rate limiting ====================
	RateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
