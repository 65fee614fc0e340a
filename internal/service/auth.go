package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/altbank/corebank/internal/domain"
)

var authTracer = otel.Tracer("service/auth")

// AuthService authenticates back-office operators and issues the JWT
// access tokens the API middleware validates. The authenticated
// operator name becomes the actor recorded on every audit entry.
type AuthService struct {
	// operators maps username to bcrypt password hash.
	operators map[string]string
	jwtSecret []byte
	accessTTL time.Duration
	audit     *AuditService
	logger    *zap.Logger
}

// NewAuthService creates the operator auth service.
func NewAuthService(operators map[string]string, jwtSecret string, accessTTL time.Duration, audit *AuditService, logger *zap.Logger) *AuthService {
	return &AuthService{
		operators: operators,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		audit:     audit,
		logger:    logger,
	}
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	hash, ok := s.operators[req.Username]
	if !ok {
		// Burn a comparison so unknown and known usernames take the
		// same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(req.Password))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: failed password attempt", zap.String("operator", req.Username))
		s.audit.Record(ctx, domain.AuditOther, "operator", req.Username, "",
			"failed login attempt", req.Username, domain.SeverityWarning)
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	token, err := s.signAccessToken(req.Username)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("operator logged in", zap.String("operator", req.Username))
	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		Operator:    req.Username,
	}, nil
}

// ============================================================
// ValidateAccessToken — used by middleware
// ============================================================

// JWTClaims represents the custom claims in operator access tokens.
type JWTClaims struct {
	Sub  string `json:"sub"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

func (s *AuthService) signAccessToken(operator string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:  operator,
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "corebank-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// HashPassword produces the bcrypt hash stored in operator
// configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
