package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limit exceeded")

	// Payment intake
	ErrVerificationFailed  = errors.New("signature verification failed")
	ErrDuplicateEvent      = errors.New("event already processed")
	ErrUnknownOrder        = errors.New("unknown order")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrMalformedEvent      = errors.New("malformed webhook event")

	// Entitlements
	ErrInvalidPlanType     = errors.New("invalid plan type")
	ErrDuplicateOrder      = errors.New("order already resolved")
	ErrUserNotFound        = errors.New("user not found")
	ErrWebinarNotFound     = errors.New("webinar not found")
	ErrDataIntegrity       = errors.New("data integrity violation")
	ErrAmountMismatch      = errors.New("amount does not match plan price")
	ErrFreeTrialConsumed   = errors.New("free trial already used")
	ErrStorageUnavailable  = errors.New("entitlement storage unavailable")
)
