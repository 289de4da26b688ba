package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/adherence-engine/internal/dose"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeDoseLogged  = "DOSE_ALREADY_LOGGED"
	CodeCheckedIn   = "ALREADY_CHECKED_IN"
	CodeNotFound    = "NOT_FOUND"
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// uuidToString converts types.UUID to string
func uuidToString(u types.UUID) string {
	return uuid.UUID(u).String()
}

// dateToTime converts types.Date to time.Time
func dateToTime(d types.Date) time.Time {
	return d.Time
}

// parseDate reads an optional YYYY-MM-DD query parameter
func parseDate(c *gin.Context, name string) (*types.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateFormat, raw)
	if err != nil {
		return nil, &service.ValidationError{Field: name, Message: "must be a date in YYYY-MM-DD format"}
	}
	return &types.Date{Time: t}, nil
}

// parseInt reads an optional integer query parameter, returning def when absent
func parseInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: name, Message: "must be an integer"}
	}
	return v, nil
}

func actorOf(c *gin.Context) service.Actor {
	return service.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    CodeValidation,
		Message: "Invalid request body",
		Details: stringPtr(err.Error()),
	})
}

// respondError maps service errors onto status codes and the error body
func respondError(c *gin.Context, logger *zap.Logger, err error, message string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: verr.Error(),
			Details: stringPtr(verr.Field),
		})
	case errors.Is(err, dose.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: "Invalid dose status",
			Details: stringPtr(err.Error()),
		})
	case errors.Is(err, dose.ErrDuplicateDose):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    CodeDoseLogged,
			Message: "Dose already logged for this time",
		})
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    CodeCheckedIn,
			Message: "Daily check-in already claimed",
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    CodeNotFound,
			Message: "Resource not found",
		})
	default:
		logger.Error(message,
			zap.String("user_id", middleware.UserID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    CodeInternal,
			Message: "Failed to " + message,
		})
	}
}
