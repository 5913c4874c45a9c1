package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Fields map[string]string `json:"fields,omitempty"`
	Error  string            `json:"error"`
}

// NewErrorResponse renders err, carrying the field of a domain validation
// error when there is one.
func NewErrorResponse(err error) ErrorResponse {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ErrorResponse{Error: ve.Error(), Fields: map[string]string{ve.Field: ve.Message}}
	}
	return ErrorResponse{Error: err.Error()}
}

// NewValidationResponse renders request-shape errors found before the
// service is called.
func NewValidationResponse(errs []ValidationError) ErrorResponse {
	return ErrorResponse{Error: ToResponse(errs), Fields: ToMap(errs)}
}

func validateRequired[T any](field string, v *T) []ValidationError {
	if v == nil {
		return []ValidationError{{Field: field, Message: "is required"}}
	}
	return nil
}

func validateZoom(field string, z *int) []ValidationError {
	if errs := validateRequired(field, z); errs != nil {
		return errs
	}
	if *z < constants.MinZoom || *z > constants.MaxZoom {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("must be between %d and %d", constants.MinZoom, constants.MaxZoom)}}
	}
	return nil
}

func validateLength(field string, s *string, maxLen int) []ValidationError {
	if s != nil && len(*s) > maxLen {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxLen)}}
	}
	return nil
}
