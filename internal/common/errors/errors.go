// Package errors provides standardized error handling for the relay pipeline.
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

const (
	// Configuration is incomplete; the affected step is skipped, never fatal.
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"

	// Upstream model service failures.
	ErrCodeUpstreamRequestFailed ErrorCode = "UPSTREAM_REQUEST_FAILED"
	ErrCodeUpstreamTimeout       ErrorCode = "UPSTREAM_TIMEOUT"

	// Downstream push failures; abort remaining segments of the turn.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// Inbound webhook payload rejected by schema validation.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
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

// ==========================
// 2. Upstream Errors
// ==========================

// UpstreamError carries the HTTP status, the service error code, and the raw
// body of a failed model-service call. The service reports a stale
// conversation handle as 404/not_found, which the client recovers from once
// by dropping the handle; everything else propagates.
type UpstreamError struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Body   string `json:"body"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed with status %d (code %q): %s", e.Status, e.Code, e.Body)
}

// IsStaleConversation reports whether this failure is the
// conversation-handle-not-found condition that warrants a single retry
// without the handle.
func (e *UpstreamError) IsStaleConversation() bool {
	return e.Status == 404 && e.Code == "not_found"
}

// ==========================
// 3. Error Constructors
// ==========================

// NewConfigurationMissingError marks a capability skipped for lack of configuration.
func NewConfigurationMissingError(capability string, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationMissing,
		Message:   fmt.Sprintf("Capability '%s' not configured", capability),
		Details:   fmt.Sprintf("missing: %v", missing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamRequestError wraps a transport-level model-service failure.
func NewUpstreamRequestError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamRequestFailed,
		Message:   "Model service request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamTimeoutError marks a model-service call that exceeded its deadline.
func NewUpstreamTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   "Model service call timed out",
		Details:   fmt.Sprintf("deadline: %s", timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryError wraps a push failure to the downstream platform.
func NewDeliveryError(segmentIndex int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Segment push to downstream platform failed",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"segmentIndex": segmentIndex},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable inbound payload error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Inbound payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsConfigurationMissing checks for the warn-and-degrade configuration case.
func IsConfigurationMissing(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code == ErrCodeConfigurationMissing
	}
	return false
}

// AsUpstream extracts an UpstreamError if err is one.
func AsUpstream(err error) (*UpstreamError, bool) {
	upErr, ok := err.(*UpstreamError)
	return upErr, ok
}
