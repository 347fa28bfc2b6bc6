package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeNoModel        ErrorType = "no_available_model"
	ErrorTypeBudget         ErrorType = "budget"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeBackendTimeout ErrorType = "backend_timeout"
	ErrorTypeBackend        ErrorType = "backend"
	ErrorTypeChainExhausted ErrorType = "chain_exhausted"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Terminal routing errors carry the full decision trace in Details so
// failures stay explainable.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation errors: malformed request, surfaced immediately, never retried
	ErrInvalidInput  = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt   = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrMissingTenant = NewDomainError(ErrorTypeValidation, "tenant identifier is required", nil)

	// Routing errors: terminal, caller must degrade gracefully
	ErrNoAvailableModel = NewDomainError(ErrorTypeNoModel, "no model satisfies the request", nil)

	// Budget errors: terminal, distinct from routing so callers can message tenants
	ErrBudgetExceeded     = NewDomainError(ErrorTypeBudget, "tenant budget ceiling reached", nil)
	ErrUnknownReservation = NewDomainError(ErrorTypeBudget, "reservation expired or unknown", nil)

	// Rate limit errors
	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, "tenant request rate exceeded", nil)

	// Per-attempt backend errors: recovered locally by advancing the chain
	ErrBackendTimeout = NewDomainError(ErrorTypeBackendTimeout, "backend call timed out", nil)
	ErrBackend        = NewDomainError(ErrorTypeBackend, "backend call failed", nil)

	// ChainExhausted: every candidate failed; carries per-candidate reasons
	ErrChainExhausted = NewDomainError(ErrorTypeChainExhausted, "all chain candidates failed", nil)

	// Configuration errors, surfaced at load time
	ErrDescriptorConflict = NewDomainError(ErrorTypeConfig, "duplicate model id with different capabilities", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return typeOf(err) == ErrorTypeValidation
}

// IsNoModelError checks if an error is a no-available-model error
func IsNoModelError(err error) bool {
	return typeOf(err) == ErrorTypeNoModel
}

// IsBudgetError checks if an error is a budget error
func IsBudgetError(err error) bool {
	return typeOf(err) == ErrorTypeBudget
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return typeOf(err) == ErrorTypeRateLimit
}

// IsBackendTimeoutError checks if an error is a per-attempt timeout
func IsBackendTimeoutError(err error) bool {
	return typeOf(err) == ErrorTypeBackendTimeout
}

// IsBackendError checks if an error is a per-attempt backend failure
func IsBackendError(err error) bool {
	return typeOf(err) == ErrorTypeBackend
}

// IsChainExhaustedError checks if an error is an exhausted-chain failure
func IsChainExhaustedError(err error) bool {
	return typeOf(err) == ErrorTypeChainExhausted
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return typeOf(err) == ErrorTypeConfig
}

// IsRetryable reports whether a per-attempt failure should advance the
// chain rather than propagate. Only backend errors and timeouts qualify.
func IsRetryable(err error) bool {
	t := typeOf(err)
	return t == ErrorTypeBackend || t == ErrorTypeBackendTimeout
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	return typeOf(err)
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

func typeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}
