package common

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	TenantIDKey  contextKey = "tenant_id"
	PrincipalKey contextKey = "principal"
	TenantKey    contextKey = "tenant"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Resource   string `json:"resource,omitempty"`
	Action     string `json:"action,omitempty"`
	Module     string `json:"module,omitempty"`
	Tier       string `json:"tier,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// SendSuccess writes the success envelope.
func SendSuccess(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, &SuccessResponse{Status: "success", Data: data})
}

// SendSuccessWithMeta writes the success envelope with pagination metadata.
func SendSuccessWithMeta(c echo.Context, code int, data, meta interface{}) error {
	return c.JSON(code, &SuccessResponse{Status: "success", Data: data, Meta: meta})
}

// SendError renders an AppError in the standard envelope. Internal error
// detail is masked unless the development posture is enabled.
func SendError(c echo.Context, err *AppError, development bool) error {
	resp := &ErrorResponse{
		Status:   "error",
		Message:  err.Message,
		Resource: err.Resource,
		Action:   err.Action,
		Module:   err.Module,
		Tier:     err.Tier,
	}
	if err.Kind == KindInternalError && !development {
		resp.Message = "internal server error"
	}
	if err.RetryAfter > 0 {
		secs := int(err.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		resp.RetryAfter = secs
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	}
	return c.JSON(err.HTTPStatus(), resp)
}

// NewHTTPErrorHandler translates AppError and echo.HTTPError values into the
// standard envelope so handlers and middleware share one response shape.
func NewHTTPErrorHandler(development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if appErr, ok := err.(*AppError); ok {
			_ = SendError(c, appErr, development)
			return
		}
		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, &ErrorResponse{Status: "error", Message: fmt.Sprintf("%v", he.Message)})
			return
		}
		_ = SendError(c, ErrInternal("unhandled error", err), development)
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetTenantIDFromContext extracts the tenant ID from the request context.
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// ClientIP resolves the caller address, honoring forwarded-for when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return host
}

// ValidateUUID validates UUID path/query parameters.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid UUID", fieldName)
	}
	return id, nil
}

// ValidatePaginationParams normalizes limit/offset query parameters.
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ValidateRequiredString validates required string fields.
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
