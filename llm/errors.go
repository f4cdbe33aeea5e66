package llm

import (
	"errors"
)

// Error represents a provider-neutral error from the streaming pipeline.
type Error struct {
	Type        ErrorType
	Message     string
	StatusCode  int   // HTTP status for transport errors, 0 otherwise
	ProviderErr error // Original underlying error
}

// ErrorType represents the category of error. Only configuration and
// transport errors are fatal to a turn; everything else is reported as data.
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTransport     ErrorType = "transport"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeCapability    ErrorType = "capability"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// TypeOf returns the error category, or ErrorTypeUnknown for foreign errors.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}

// IsTransportError checks if an error is a transport error.
func IsTransportError(err error) bool {
	return TypeOf(err) == ErrorTypeTransport
}

// NewConfigurationError creates an error for an invalid option combination.
// These are raised synchronously, before any network activity.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewTransportError creates an error for a failed transport call.
func NewTransportError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeTransport,
		Message:     message,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// NewRateLimitError creates an error for an HTTP 429 response.
func NewRateLimitError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		StatusCode:  429,
		ProviderErr: providerErr,
	}
}

// NewCapabilityError creates an error scoped to a single capability
// invocation. These never abort a turn; they surface as error-flagged results.
func NewCapabilityError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeCapability,
		Message:     message,
		ProviderErr: providerErr,
	}
}
