package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/chargeplan/internal/command"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
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

// domainValidation carries the field and wording reported for domain validation errors.
var domainValidation = map[error]ValidationError{
	scheduledomain.ErrInvalidSchedule: {Field: "scheduledTime", Code: "invalid_schedule", Message: "Invalid schedule data"},
	scheduledomain.ErrScheduleInPast:  {Field: "scheduledTime", Code: "schedule_in_past", Message: "Scheduled time must be in the future"},
	scheduledomain.ErrInvalidDeviceID: {Field: "deviceId", Code: "invalid_device_id", Message: "invalid device id"},
	devicedomain.ErrInvalidDeviceID:   {Field: "deviceId", Code: "invalid_device_id", Message: "invalid device id"},
	command.ErrInvalidDeviceID:        {Field: "deviceId", Code: "invalid_device_id", Message: "invalid device id"},
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

	for sentinel, detail := range domainValidation {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: detail.Message,
				Errors:  []ValidationError{detail},
			}
		}
	}

	switch {
	case errors.Is(err, scheduledomain.ErrDeviceMismatch):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "Schedule does not belong to this device",
		}
	case errors.Is(err, devicedomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Car not found",
		}
	case errors.Is(err, scheduledomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Schedule not found",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, devicedomain.ErrAlreadyRegistered):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "Car already registered",
		}
	case errors.Is(err, scheduledomain.ErrScheduleExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "Schedule already exists",
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

// classifyErrorForLog returns the error type and a low-cardinality code for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	switch {
	case len(payload.Errors) > 0:
		code = payload.Errors[0].Code
	case errors.Is(err, recordstore.ErrUnavailable):
		code = "record_store_unavailable"
	case errors.Is(err, command.ErrChannelUnavailable):
		code = "command_channel_unavailable"
	}
	return payload.Type, code
}
