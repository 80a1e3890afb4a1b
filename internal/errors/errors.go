// Package errors provides custom error types for the tradi API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Catalogue errors.
var (
	ErrAssetNotFound        = &AppError{Code: "ASSET_NOT_FOUND", Message: "Financial asset not found", StatusCode: http.StatusNotFound}
	ErrDuplicateAsset       = &AppError{Code: "DUPLICATE_ASSET", Message: "An asset with this ticker, type, market and exchange already exists", StatusCode: http.StatusConflict}
	ErrTradingPairNotFound  = &AppError{Code: "TRADING_PAIR_NOT_FOUND", Message: "Trading pair not found", StatusCode: http.StatusNotFound}
	ErrDuplicateTradingPair = &AppError{Code: "DUPLICATE_TRADING_PAIR", Message: "A trading pair with these assets already exists", StatusCode: http.StatusConflict}
	ErrIncompatibleAssets   = &AppError{Code: "INCOMPATIBLE_ASSETS", Message: "Base and quote assets must share type, market and exchange", StatusCode: http.StatusBadRequest}
)

// Position errors.
var (
	ErrPositionNotFound    = &AppError{Code: "POSITION_NOT_FOUND", Message: "Position not found", StatusCode: http.StatusNotFound}
	ErrInvalidTrailingStop = &AppError{Code: "INVALID_TRAILING_STOP", Message: "A trailing stop requires its type", StatusCode: http.StatusBadRequest}
)

// Catalogue sync errors.
var (
	ErrExchangeUnavailable = &AppError{Code: "EXCHANGE_UNAVAILABLE", Message: "Could not fetch instruments from the exchange", StatusCode: http.StatusBadGateway}
	ErrSyncInProgress      = &AppError{Code: "SYNC_IN_PROGRESS", Message: "A catalogue sync is already running", StatusCode: http.StatusConflict}
	ErrServiceUnavailable  = &AppError{Code: "SERVICE_UNAVAILABLE", Message: "Service not configured", StatusCode: http.StatusServiceUnavailable}
)
