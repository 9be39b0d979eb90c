package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"gatekit/internal/caching"
	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/repositories"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and verifies credentials. Verification never queries
// the user store on the hot path; the principal is rebuilt from claims.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	// VerifyToken validates signature and expiry and rebuilds the Principal
	// embedded in the claims.
	VerifyToken(ctx context.Context, tokenString string) (*models.Principal, *common.AppError)
}

// PrincipalClaims is the identity payload embedded in access tokens.
type PrincipalClaims struct {
	Email        string            `json:"email"`
	Role         string            `json:"role"`
	TenantID     *string           `json:"tenant_id,omitempty"`
	DepartmentID string            `json:"department_id,omitempty"`
	TeamID       string            `json:"team_id,omitempty"`
	Permissions  []string          `json:"permissions"`
	Scopes       map[string]string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo   repositories.UserRepository
	cacheSvc   caching.CacheService
	jwtSecret  []byte
	jwks       *keyfunc.JWKS // nil unless a JWKS endpoint is configured
	tokenTTL   time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates the authentication service. jwksEndpoint is
// optional; when set, RS256 api_user credentials verify against it.
func NewAuthService(userRepo repositories.UserRepository, cacheSvc caching.CacheService, jwtSecret, jwksEndpoint string, tokenTTL, refreshTTL time.Duration) (AuthService, error) {
	s := &authService{
		userRepo:   userRepo,
		cacheSvc:   cacheSvc,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		refreshTTL: refreshTTL,
	}

	if jwksEndpoint != "" {
		jwks, err := keyfunc.Get(jwksEndpoint, keyfunc.Options{
			RefreshInterval:  time.Hour,
			RefreshRateLimit: time.Minute,
			RefreshErrorHandler: func(err error) {
				log.Printf("WARN: JWKS refresh failed: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksEndpoint, err)
		}
		s.jwks = jwks
	}

	return s, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, common.ErrAuthentication("invalid credentials")
	}
	if user.Status != "active" {
		return nil, common.ErrAuthentication("account is not active")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrAuthentication("invalid credentials")
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	tokenHash := s.hashToken(refreshToken)
	cacheKey := "gatekit:refresh_token:" + tokenHash

	stored, err := s.cacheSvc.GetString(ctx, cacheKey)
	if err != nil {
		return nil, common.ErrInternal("refresh token lookup failed", err)
	}
	if stored == "" {
		return nil, common.ErrAuthentication("refresh token is invalid or expired")
	}

	userID, err := uuid.Parse(stored)
	if err != nil {
		return nil, common.ErrAuthentication("refresh token is invalid or expired")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, common.ErrAuthentication("user no longer exists")
	}
	if user.Status != "active" {
		return nil, common.ErrAuthentication("account is not active")
	}

	// Rotate: the old refresh token is single-use.
	if err := s.cacheSvc.Delete(ctx, cacheKey); err != nil {
		log.Printf("WARN: failed to revoke rotated refresh token: %v", err)
	}

	return s.issueTokens(ctx, user)
}

// issueTokens flattens the user's role-derived and direct grants into the
// claims. Codes are validated against the closed vocabulary here, at
// issuance, never trusted at evaluation time.
func (s *authService) issueTokens(ctx context.Context, user *models.User) (*models.TokenResponse, error) {
	grants, err := s.userRepo.ListGrantCodes(ctx, user.ID)
	if err != nil {
		return nil, common.ErrInternal("failed to load permission grants", err)
	}

	valid := make([]string, 0, len(grants))
	for _, code := range grants {
		if _, parseErr := models.ParsePermissionCode(code); parseErr != nil {
			log.Printf("WARN: dropping malformed permission code %q for user %s", code, user.ID)
			continue
		}
		valid = append(valid, code)
	}

	rawScopes, err := s.userRepo.ListScopes(ctx, user.ID)
	if err != nil {
		return nil, common.ErrInternal("failed to load data scopes", err)
	}

	now := time.Now()
	var tenantIDStr *string
	if user.TenantID != nil {
		str := user.TenantID.String()
		tenantIDStr = &str
	}

	claims := PrincipalClaims{
		Email:       user.Email,
		Role:        user.Role,
		TenantID:    tenantIDStr,
		Permissions: valid,
		Scopes:      rawScopes,
	}
	if user.DepartmentID != nil {
		claims.DepartmentID = user.DepartmentID.String()
	}
	if user.TeamID != nil {
		claims.TeamID = user.TeamID.String()
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    "gatekit-auth",
		Subject:   user.ID.String(),
		Audience:  jwt.ClaimStrings{"gatekit-api"},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, common.ErrInternal("failed to sign access token", err)
	}

	refreshToken := s.generateSecureToken()
	cacheKey := "gatekit:refresh_token:" + s.hashToken(refreshToken)
	if err := s.cacheSvc.SetString(ctx, cacheKey, user.ID.String(), s.refreshTTL); err != nil {
		return nil, common.ErrInternal("failed to store refresh token", err)
	}

	resp := &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenTTL.Seconds()),
		RefreshToken: refreshToken,
		UserID:       user.ID.String(),
		IssuedAt:     now,
	}
	if tenantIDStr != nil {
		resp.TenantID = *tenantIDStr
	}
	return resp, nil
}

func (s *authService) VerifyToken(_ context.Context, tokenString string) (*models.Principal, *common.AppError) {
	claims := &PrincipalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFor,
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithIssuer("gatekit-auth"),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrAuthentication("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, common.ErrAuthentication("invalid token subject")
	}
	if !models.ValidRole(claims.Role) {
		return nil, common.ErrAuthentication("unknown role in token")
	}

	principal := &models.Principal{
		UserID:       userID,
		Email:        claims.Email,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
		TeamID:       claims.TeamID,
		Permissions:  claims.Permissions,
		Scopes:       make(map[string]models.Scope, len(claims.Scopes)),
	}

	if claims.TenantID != nil {
		tenantID, parseErr := uuid.Parse(*claims.TenantID)
		if parseErr != nil {
			return nil, common.ErrAuthentication("invalid tenant binding in token")
		}
		principal.TenantID = &tenantID
	} else if claims.Role != models.RoleSuperAdmin {
		// Only super_admin credentials are unbound from a tenant.
		return nil, common.ErrAuthentication("token lacks a tenant binding")
	}

	for resource, scope := range claims.Scopes {
		principal.Scopes[resource] = models.ParseScope(scope)
	}

	return principal, nil
}

// keyFor selects the verification key by algorithm: HS256 tokens use the
// shared secret, RS256 machine credentials resolve through JWKS.
func (s *authService) keyFor(token *jwt.Token) (interface{}, error) {
	if strings.HasPrefix(token.Method.Alg(), "RS") {
		if s.jwks == nil {
			return nil, fmt.Errorf("RS256 token received but no JWKS endpoint configured")
		}
		return s.jwks.Keyfunc(token)
	}
	return s.jwtSecret, nil
}

func (s *authService) generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure is unrecoverable for credential issuance
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *authService) hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
