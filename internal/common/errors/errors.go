// internal/common/errors/errors.go

// Package errors provides standardized error handling for the entitlement
// workers and their BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Subscription synchronization errors
const (
	// ErrCodeAdapterUnavailable - the billing provider could not be reached
	// and no cached tier exists. Transient.
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"

	// ErrCodeMirrorWriteFailed - the mirror write is best-effort only and
	// never fails the overall sync; the code exists for logging and metrics.
	ErrCodeMirrorWriteFailed ErrorCode = "MIRROR_WRITE_FAILED"

	ErrCodeCacheReadFailed  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
)

// Entitlement grant exchange errors
const (
	// ErrCodeInsufficientBalance - rejected before any network effect.
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeGrantFailed - the remote grant call failed or answered
	// success=false; the wallet is untouched.
	ErrCodeGrantFailed ErrorCode = "GRANT_FAILED"

	ErrCodeWalletCheckFailed ErrorCode = "WALLET_CHECK_FAILED"
	ErrCodeOfferNotFound     ErrorCode = "OFFER_NOT_FOUND"
	ErrCodePromoCodeInvalid  ErrorCode = "PROMO_CODE_INVALID"
	ErrCodePromoCodeRedeemed ErrorCode = "PROMO_CODE_REDEEMED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeExternalServiceError     ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT"
	ErrCodeAuthenticationFailed     ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeParseError               ErrorCode = "PARSE_ERROR"
	ErrCodeValidationFailed         ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the ErrorCode from any error, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ConvertToBPMNError maps a StandardError onto a throwable BPMN error.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"failedAt": stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetRetryCount returns how many engine-level retries a code deserves.
// GRANT_FAILED is deliberately zero: the grant endpoint's idempotency is not
// trusted under retry storms combined with wallet races, so retry is left to
// the user.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAdapterUnavailable,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeExternalServiceError,
		ErrCodeTimeout:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logging and dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeAdapterUnavailable, ErrCodeMirrorWriteFailed,
		ErrCodeCacheReadFailed, ErrCodeCacheWriteFailed, ErrCodeSessionNotFound:
		return "subscription"
	case ErrCodeInsufficientBalance, ErrCodeGrantFailed, ErrCodeWalletCheckFailed,
		ErrCodeOfferNotFound, ErrCodePromoCodeInvalid, ErrCodePromoCodeRedeemed:
		return "exchange"
	case ErrCodeParseError, ErrCodeValidationFailed:
		return "input"
	default:
		return "infrastructure"
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewAdapterUnavailableError is returned when the billing provider cannot be
// reached and no cached tier can stand in for it.
func NewAdapterUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAdapterUnavailable,
		Message:   "Billing provider unreachable and no cached tier available",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMirrorWriteFailedError records a best-effort mirror write failure.
func NewMirrorWriteFailedError(userID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMirrorWriteFailed,
		Message:   "Mirror store write failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"userId": userID},
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientBalanceError creates a non-retryable user-input-class error.
func NewInsufficientBalanceError(balance, cost int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientBalance,
		Message:   "Wallet balance below exchange cost",
		Details:   fmt.Sprintf("balance: %d, cost: %d", balance, cost),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGrantFailedError creates a non-retryable grant rejection.
func NewGrantFailedError(entitlementID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGrantFailed,
		Message:   "Remote entitlement grant failed",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"entitlementId": entitlementID},
		Timestamp: time.Now().UTC(),
	}
}

// NewWalletCheckFailedError creates a retryable wallet read error.
func NewWalletCheckFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWalletCheckFailed,
		Message:   "Wallet balance read failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOfferNotFoundError creates a non-retryable catalog lookup error.
func NewOfferNotFoundError(itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOfferNotFound,
		Message:   "Exchange offer not found in catalog",
		Details:   fmt.Sprintf("itemId: %s", itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPromoCodeInvalidError creates a non-retryable promo lookup error.
func NewPromoCodeInvalidError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodePromoCodeInvalid,
		Message:   "Promo code unknown or inactive",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPromoCodeRedeemedError creates a non-retryable duplicate redemption error.
func NewPromoCodeRedeemedError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodePromoCodeRedeemed,
		Message:   "Promo code already redeemed",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalServiceError creates a retryable external service error.
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalServiceError,
		Message:   fmt.Sprintf("External service %s failed", service),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates a retryable timeout error. A timed-out call is
// always treated as a transient failure, never as a silent success.
func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Call to %s timed out", service),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable authentication error.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable error for operations that
// require a live logged-in session.
func NewSessionNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "No active session for user",
		Details:   fmt.Sprintf("user %s has no logged-in session", userID),
		Retryable: false,
		Metadata:  map[string]interface{}{"userId": userID},
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError creates a non-retryable input parse error.
func NewParseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Failed to parse job input",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
