package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "school-fees",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func bursar() identity.Actor {
	return identity.Actor{UserID: uuid.New(), SchoolID: uuid.New(), Role: identity.RoleFinanceManager, Username: "bursar"}
}

func signRaw(t *testing.T, claims *Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()

	tests := []struct {
		name  string
		actor identity.Actor
	}{
		{name: "finance manager", actor: bursar()},
		{name: "parent", actor: identity.Actor{UserID: uuid.New(), SchoolID: uuid.New(), Role: identity.RoleParent}},
		{name: "super admin without school", actor: identity.Actor{UserID: uuid.New(), Role: identity.RoleSuperAdmin, Username: "ops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := svc.IssueAccessToken(tt.actor)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

			actor, claims, err := svc.ValidateAccessToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.actor, actor)
			assert.Equal(t, "school-fees", claims.Issuer)
			assert.NotEmpty(t, claims.ID)
		})
	}
}

func TestJWTService_ValidateAccessToken_Rejects(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	valid := func() *Claims {
		a := bursar()
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "school-fees",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			UserID:   a.UserID.String(),
			SchoolID: a.SchoolID.String(),
			Role:     string(a.Role),
		}
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not.a.jwt" },
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signRaw(t, valid(), jwt.SigningMethodHS256, []byte("another-secret"))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return signRaw(t, valid(), jwt.SigningMethodHS512, []byte(testSecret))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				c := valid()
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "not yet valid",
			token: func(t *testing.T) string {
				c := valid()
				c.NotBefore = jwt.NewNumericDate(now.Add(time.Hour))
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "foreign issuer",
			token: func(t *testing.T) string {
				c := valid()
				c.Issuer = "someone-else"
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing school for staff",
			token: func(t *testing.T) string {
				c := valid()
				c.SchoolID = ""
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrMissingSchoolID,
		},
		{
			name: "missing user",
			token: func(t *testing.T) string {
				c := valid()
				c.UserID = ""
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrMissingUserID,
		},
		{
			name: "unknown role",
			token: func(t *testing.T) string {
				c := valid()
				c.Role = "LIBRARIAN"
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrInvalidClaims,
		},
		{
			name: "malformed school id",
			token: func(t *testing.T) string {
				c := valid()
				c.SchoolID = "school-1"
				return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrInvalidClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ValidateAccessToken(tt.token(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewJWTService_DefaultExpiration(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: testSecret})
	assert.Equal(t, 15*time.Minute, svc.expiration)
}
