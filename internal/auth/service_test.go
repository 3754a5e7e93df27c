package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
)

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyToken(t *testing.T) {
	walletID := uuid.New()

	t.Run("should round-trip claims through a signed token", func(t *testing.T) {
		s := NewService(nil, "secret")
		token := signToken(t, "secret", &Claims{
			WalletID: walletID.String(),
			Address:  "0xmanager",
			Role:     string(policy.RoleManager),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		claims, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "0xmanager", claims.Address)

		caller := claims.Caller()
		assert.Equal(t, policy.Address("0xmanager"), caller.Address)
		assert.Equal(t, policy.RoleManager, caller.Role)

		got, err := claims.WalletUUID()
		require.NoError(t, err)
		assert.Equal(t, walletID, got)
	})

	t.Run("should strip a Bearer prefix", func(t *testing.T) {
		s := NewService(nil, "secret")
		token := signToken(t, "secret", &Claims{
			WalletID: walletID.String(),
			Address:  "0xowner",
			Role:     string(policy.RoleOwner),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		claims, err := s.VerifyToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "0xowner", claims.Address)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		s := NewService(nil, "secret")
		token := signToken(t, "other-secret", &Claims{
			WalletID: walletID.String(),
			Address:  "0xowner",
			Role:     string(policy.RoleOwner),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		_, err := s.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		s := NewService(nil, "secret")
		token := signToken(t, "secret", &Claims{
			WalletID: walletID.String(),
			Address:  "0xowner",
			Role:     string(policy.RoleOwner),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})

		_, err := s.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		s := NewService(nil, "secret")
		_, err := s.VerifyToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
