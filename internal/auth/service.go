package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terminal-bench/walletguard/internal/policy"
)

var (
	ErrSignerNotFound = errors.New("signer not found")
	ErrInvalidToken   = errors.New("invalid token")
)

// Service resolves caller identities. Signers (the owner, delegated
// managers, and designated security-action signers) are registered per
// wallet; tokens carry the wallet, address, and role the engine's permission
// checks run against. The engine itself only ever sees the resolved
// policy.Caller.
type Service struct {
	db        *sql.DB
	jwtSecret string
	tokenTTL  time.Duration
}

// Claims are the JWT claims for a wallet signer.
type Claims struct {
	WalletID string `json:"wallet_id"`
	Address  string `json:"address"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewService creates an auth service.
func NewService(db *sql.DB, jwtSecret string) *Service {
	return &Service{
		db:        db,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
	}
}

// RegisterSigner records an address as a signer for a wallet.
func (s *Service) RegisterSigner(ctx context.Context, walletID uuid.UUID, addr policy.Address, role policy.Role) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO signers (wallet_id, address, role, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (wallet_id, address) DO UPDATE SET role = $3",
		walletID.String(), string(addr), string(role), time.Now(),
	)
	return err
}

// RemoveSigner deletes a signer record.
func (s *Service) RemoveSigner(ctx context.Context, walletID uuid.UUID, addr policy.Address) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM signers WHERE wallet_id = $1 AND address = $2",
		walletID.String(), string(addr),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSignerNotFound
	}
	return nil
}

// IssueToken looks up the signer's role for the wallet and signs a token.
func (s *Service) IssueToken(ctx context.Context, walletID uuid.UUID, addr policy.Address) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		"SELECT role FROM signers WHERE wallet_id = $1 AND address = $2",
		walletID.String(), string(addr),
	).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrSignerNotFound
	}
	if err != nil {
		return "", err
	}

	claims := &Claims{
		WalletID: walletID.String(),
		Address:  string(addr),
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken parses and validates a token, with or without a Bearer prefix.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Caller converts verified claims into the engine's caller identity.
func (c *Claims) Caller() policy.Caller {
	return policy.Caller{
		Address: policy.Address(c.Address),
		Role:    policy.Role(c.Role),
	}
}

// WalletUUID parses the wallet ID claim.
func (c *Claims) WalletUUID() (uuid.UUID, error) {
	return uuid.Parse(c.WalletID)
}
