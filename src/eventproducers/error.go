package eventproducers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

type ErrorResponse struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func SetResponse[T any](obj *T, statusCode int, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

// SetErrorResponse maps the error taxonomy to HTTP: validation errors become
// 400 with per-field details, missing resources 404, processing errors 500
// with the failure reason, and anything else an opaque 500.
func SetErrorResponse(err error, w http.ResponseWriter) {
	var validationErr *eventmodels.ValidationError
	var notFoundErr *eventmodels.ResourceNotFoundError
	var processingErr *eventmodels.ProcessingError

	var statusCode int
	var resp ErrorResponse

	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
		resp = ErrorResponse{Message: validationErr.Message, Details: validationErr.FieldErrors}
	case errors.As(err, &notFoundErr):
		statusCode = http.StatusNotFound
		resp = ErrorResponse{Message: notFoundErr.Error()}
	case errors.As(err, &processingErr):
		statusCode = http.StatusInternalServerError
		resp = ErrorResponse{Message: processingErr.Message, Details: map[string]string{"reason": processingErr.Reason}}
	default:
		statusCode = http.StatusInternalServerError
		resp = ErrorResponse{Message: "internal server error"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		log.Errorf("SetErrorResponse: encode: %v", encodeErr)
	}
}
