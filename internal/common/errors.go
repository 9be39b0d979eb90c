package common

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a pipeline failure. Every stage failure maps to
// exactly one kind; no stage downgrades another stage's failure.
type ErrorKind string

const (
	KindTenantNotFound      ErrorKind = "tenant_not_found"
	KindNotFound            ErrorKind = "not_found"
	KindAuthenticationError ErrorKind = "authentication_error"
	KindTenantMismatch      ErrorKind = "tenant_mismatch"
	KindAuthorizationError  ErrorKind = "authorization_error"
	KindRateLimitExceeded   ErrorKind = "rate_limit_exceeded"
	KindValidationError     ErrorKind = "validation_error"
	KindInternalError       ErrorKind = "internal_error"
)

// AppError is the single failure type carried through the request pipeline.
// Resource/Action are set for authorization denials, Tier/RetryAfter for
// rate-limit denials, so the audit trail can name the failing check.
type AppError struct {
	Kind       ErrorKind
	Message    string
	Resource   string
	Action     string
	Module     string
	Tier       string
	RetryAfter time.Duration
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to its response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindTenantNotFound, KindNotFound:
		return http.StatusNotFound
	case KindAuthenticationError:
		return http.StatusUnauthorized
	case KindTenantMismatch, KindAuthorizationError:
		return http.StatusForbidden
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func ErrTenantNotFound(subdomain string) *AppError {
	return &AppError{Kind: KindTenantNotFound, Message: fmt.Sprintf("tenant %q not found", subdomain)}
}

// ErrNotFound reports a missing non-tenant resource. Tenant resolution
// failures keep their own kind so the audit trail tells them apart.
func ErrNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func ErrAuthentication(message string) *AppError {
	return &AppError{Kind: KindAuthenticationError, Message: message}
}

func ErrTenantMismatch() *AppError {
	return &AppError{Kind: KindTenantMismatch, Message: "credential is bound to a different tenant"}
}

func ErrAuthorization(message, resource, action string) *AppError {
	return &AppError{Kind: KindAuthorizationError, Message: message, Resource: resource, Action: action}
}

func ErrModuleDenied(moduleCode, reason string) *AppError {
	return &AppError{Kind: KindAuthorizationError, Message: reason, Module: moduleCode}
}

func ErrRateLimited(tier string, retryAfter time.Duration) *AppError {
	return &AppError{
		Kind:       KindRateLimitExceeded,
		Message:    fmt.Sprintf("rate limit exceeded for tier %q", tier),
		Tier:       tier,
		RetryAfter: retryAfter,
	}
}

func ErrValidation(message string) *AppError {
	return &AppError{Kind: KindValidationError, Message: message}
}

// ErrInternal wraps a store or timeout failure. The wrapped cause is kept
// for logging and audit; the response hides it in a production posture.
func ErrInternal(message string, cause error) *AppError {
	return &AppError{Kind: KindInternalError, Message: message, cause: cause}
}
