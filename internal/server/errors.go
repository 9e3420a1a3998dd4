package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assignmentdomain "github.com/parcelflow/parcelflow/internal/assignment/domain"
	disputedomain "github.com/parcelflow/parcelflow/internal/dispute/domain"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
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
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    err.Error(),
			Message: "conflict",
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isParcelValidationError(err),
		isHubValidationError(err),
		isRiderValidationError(err),
		isMerchantValidationError(err),
		isDisputeValidationError(err),
		isPricingValidationError(err),
		isTransactionValidationError(err),
		isAuditLogValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, parceldomain.ErrNotFound),
		errors.Is(err, hubdomain.ErrNotFound),
		errors.Is(err, riderdomain.ErrNotFound),
		errors.Is(err, merchantdomain.ErrNotFound),
		errors.Is(err, disputedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// Conflict errors are business rules the caller broke, not malformed input.
// The sentinel code goes out as the error type so clients can branch on it.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, parceldomain.ErrConflict),
		errors.Is(err, parceldomain.ErrIllegalTransition),
		errors.Is(err, parceldomain.ErrTerminalState),
		errors.Is(err, parceldomain.ErrRiderRequired),
		errors.Is(err, parceldomain.ErrMerchantNotVerified),
		errors.Is(err, assignmentdomain.ErrAlreadyAssigned),
		errors.Is(err, assignmentdomain.ErrNotAssigned),
		errors.Is(err, assignmentdomain.ErrRiderUnavailable),
		errors.Is(err, assignmentdomain.ErrHubMismatch),
		errors.Is(err, assignmentdomain.ErrNoRoute),
		errors.Is(err, disputedomain.ErrDuplicateOpenDispute),
		errors.Is(err, disputedomain.ErrAlreadyResolved),
		errors.Is(err, hubdomain.ErrReferentialIntegrity),
		errors.Is(err, riderdomain.ErrReferentialIntegrity),
		errors.Is(err, merchantdomain.ErrReferentialIntegrity),
		errors.Is(err, pricingdomain.ErrNoActiveConfig):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
