package handlers

import (
	"log"
	"net/http"

	"gatekit/internal/common"
	"gatekit/internal/middleware"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

type AuthHandlers struct {
	authSvc      services.AuthService
	rateLimitSvc services.RateLimitService
}

func NewAuthHandlers(authSvc services.AuthService, rateLimitSvc services.RateLimitService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc, rateLimitSvc: rateLimitSvc}
}

// Login exchanges email+password for a token pair. The auth rate tier
// counts the attempt at admission; a success is refunded so only failed
// attempts slow credential guessing.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed login payload")
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return common.ErrValidation(err.Error())
	}
	if err := common.ValidateRequiredString(req.Password, "password"); err != nil {
		return common.ErrValidation(err.Error())
	}

	tokens, err := h.authSvc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	if refundErr := h.rateLimitSvc.RefundAuthAttempt(c.Request().Context(), common.ClientIP(c.Request())); refundErr != nil {
		log.Printf("WARN: failed to refund auth rate tier: %v", refundErr)
	}

	return common.SendSuccess(c, http.StatusOK, tokens)
}

// Refresh rotates a refresh token into a new pair.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	var req models.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed refresh payload")
	}
	if err := common.ValidateRequiredString(req.RefreshToken, "refresh_token"); err != nil {
		return common.ErrValidation(err.Error())
	}

	tokens, err := h.authSvc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, http.StatusOK, tokens)
}

// Me returns the caller's principal with its effective permissions and
// data scopes.
func (h *AuthHandlers) Me(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c.Request().Context())
	if !ok {
		return common.ErrAuthentication("no token")
	}
	return common.SendSuccess(c, http.StatusOK, principal)
}
