package server

import (
	"errors"
	"net/http"

	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	filingdomain "github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/pkg/format"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *format.Error
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fieldErr.Field,
					Code:    fieldErr.Code,
					Message: fieldErr.Message,
				},
			},
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, filingdomain.ErrResumeExpired):
		return http.StatusNotFound, errorPayload{
			Type:    "resume_expired",
			Message: "this filing can no longer be resumed",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, filingdomain.ErrNotDraft):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "filing is no longer a draft",
		}
	case errors.Is(err, filingdomain.ErrContactRequired):
		return http.StatusConflict, errorPayload{
			Type:    "contact_required",
			Message: "this registration cannot be completed online; contact support",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, carrierdomain.ErrUnavailable),
		errors.Is(err, carrierdomain.ErrBadUpstream),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, carrierdomain.ErrInvalidDOTNumber),
		errors.Is(err, filingdomain.ErrInvalidFilingType),
		errors.Is(err, filingdomain.ErrInvalidID),
		errors.Is(err, filingdomain.ErrInvalidDirection),
		errors.Is(err, filingdomain.ErrInvalidAttachment),
		errors.Is(err, filingdomain.ErrInvalidPaymentMethod),
		errors.Is(err, filingdomain.ErrTermsNotAccepted),
		errors.Is(err, filingdomain.ErrStepIncomplete),
		errors.Is(err, filingdomain.ErrAttachmentRequired):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, carrierdomain.ErrNotFound),
		errors.Is(err, filingdomain.ErrNotFound),
		errors.Is(err, filingdomain.ErrInvalidResumeToken),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
