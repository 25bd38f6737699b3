package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSchoolID  = errors.New("missing school_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims is the identity context issued by the school's identity provider
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	SchoolID string `json:"school_id,omitempty"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
}

// Actor converts the claims into the caller identity used by the ledger.
// Only SUPER_ADMIN tokens may omit school_id.
func (c *Claims) Actor() (identity.Actor, error) {
	if c.UserID == "" {
		return identity.Actor{}, ErrMissingUserID
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return identity.Actor{}, ErrInvalidClaims
	}

	role := identity.Role(c.Role)
	var schoolID uuid.UUID
	if c.SchoolID != "" {
		schoolID, err = uuid.Parse(c.SchoolID)
		if err != nil {
			return identity.Actor{}, ErrInvalidClaims
		}
	} else if role != identity.RoleSuperAdmin {
		return identity.Actor{}, ErrMissingSchoolID
	}

	actor, err := identity.NewActor(userID, schoolID, role, c.Username)
	if err != nil {
		return identity.Actor{}, ErrInvalidClaims
	}
	return actor, nil
}

// JWTService verifies HS256 access tokens. IssueAccessToken exists for
// local development and tests; production tokens come from the identity
// provider sharing the secret.
type JWTService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	expiration := cfg.AccessTokenExpiration
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}
	return &JWTService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		expiration: expiration,
		now:        time.Now,
	}
}

// IssueAccessToken signs a token for the actor
func (s *JWTService) IssueAccessToken(actor identity.Actor) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   actor.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:   actor.UserID.String(),
		Role:     string(actor.Role),
		Username: actor.Username,
	}
	if actor.SchoolID != uuid.Nil {
		claims.SchoolID = actor.SchoolID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies the signature and time claims and returns
// the caller identity
func (s *JWTService) ValidateAccessToken(tokenString string) (identity.Actor, *Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return identity.Actor{}, nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return identity.Actor{}, nil, ErrTokenNotYetValid
		}
		return identity.Actor{}, nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Actor{}, nil, ErrInvalidClaims
	}
	actor, err := claims.Actor()
	if err != nil {
		return identity.Actor{}, nil, err
	}
	return actor, claims, nil
}
