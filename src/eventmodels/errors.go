package eventmodels

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = fmt.Errorf("trade order not found")
	ErrPortfolioNotFound = fmt.Errorf("portfolio entry not found")
	ErrLockTimeout       = fmt.Errorf("lock acquisition timed out")
)

// ValidationError carries field-level detail for a rejected client input.
// It is never retryable.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

func NewValidationError(message string, fieldErrors map[string]string) *ValidationError {
	return &ValidationError{Message: message, FieldErrors: fieldErrors}
}

func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.FieldErrors)
}

// ResourceNotFoundError is returned by read paths when a lookup misses.
type ResourceNotFoundError struct {
	ResourceType string
	ResourceID   string
}

func NewResourceNotFoundError(resourceType, resourceID string) *ResourceNotFoundError {
	return &ResourceNotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.ResourceType, e.ResourceID)
}

// ProcessingError carries the order id and a machine-readable reason for a
// failure inside the pipeline. Retryable is fixed at the point of creation:
// transient failures retry through the bus backoff policy, business-rule
// violations dead-letter immediately.
type ProcessingError struct {
	Message   string
	OrderID   uuid.UUID
	Reason    string
	Retryable bool
	Cause     error
}

func NewProcessingError(message string, orderID uuid.UUID, reason string) *ProcessingError {
	return &ProcessingError{Message: message, OrderID: orderID, Reason: reason, Retryable: true}
}

func NewNonRetryableProcessingError(message string, orderID uuid.UUID, reason string) *ProcessingError {
	return &ProcessingError{Message: message, OrderID: orderID, Reason: reason, Retryable: false}
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (order %s): %s: %v", e.Message, e.OrderID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s (order %s): %s", e.Message, e.OrderID, e.Reason)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// IsRetryable classifies an error for the consumer retry policy. Validation
// errors and processing errors flagged non-retryable dead-letter immediately;
// anything else is assumed transient.
func IsRetryable(err error) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	var processingErr *ProcessingError
	if errors.As(err, &processingErr) {
		return processingErr.Retryable
	}

	return true
}
