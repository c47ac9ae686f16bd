package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ft-lockup/backend/internal/auth"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	proofPayloadKey = "ton-proof:payload:"
	proofPayloadTTL = 5 * time.Minute
)

// NonceStore keeps TON Proof payloads until they are used once.
type NonceStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// AuthService logs wallets in with TON Proof and issues session tokens
// carrying the wallet's account id.
type AuthService struct {
	nonces   NonceStore
	verifier *ton.ProofVerifier
	cfg      *config.Config
	log      *zap.Logger
}

// NewAuthService verifies wallet keys through state init, or through keys
// for wallets that log in without one. keys may be nil.
func NewAuthService(nonces NonceStore, keys ton.WalletKeys, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{
		nonces:   nonces,
		verifier: ton.NewProofVerifier(cfg.TONProofAllowedDomains, keys),
		cfg:      cfg,
		log:      log,
	}
}

// GeneratePayload создаёт nonce для TON Proof.
// Клиент передаёт его в tonconnect при подключении кошелька.
func (s *AuthService) GeneratePayload(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	payload := hex.EncodeToString(buf)

	ok, err := s.nonces.SetNX(ctx, proofPayloadKey+payload, "1", proofPayloadTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store proof payload: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("proof payload collision")
	}
	return payload, nil
}

type LoginRequest struct {
	Address   string    `json:"address"` // raw: "0:abc..."
	Network   string    `json:"network"` // "mainnet" / "testnet"
	PublicKey string    `json:"public_key"`
	StateInit string    `json:"state_init,omitempty"` // base64 BOC
	Proof     ton.Proof `json:"proof"`
}

type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	// 1. Consume payload (nonce) — защита от replay
	if err := s.nonces.GetDel(ctx, proofPayloadKey+req.Proof.Payload).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: invalid or expired proof payload", models.ErrUnauthorized)
		}
		return nil, err
	}

	// 2. Адрес кошелька в raw форме "0:abc..."
	account, err := ton.ParseAccount(req.Address)
	if err != nil {
		return nil, err
	}

	// 3. Проверяем network
	if req.Network != "" && req.Network != s.cfg.TONNetwork {
		return nil, fmt.Errorf("%w: network mismatch: expected %s, got %s", models.ErrUnauthorized, s.cfg.TONNetwork, req.Network)
	}

	// 4. Верифицируем TON Proof подпись
	if err := s.verifier.Verify(ctx, account, req.PublicKey, req.StateInit, req.Proof); err != nil {
		return nil, err
	}

	accountID := ton.AccountID(account.Workchain(), account.Data())
	token, expiresAt, err := auth.GenerateJWT(s.cfg.JWTSecret, accountID, s.cfg.JWTExpiration)
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet logged in", zap.String("account_id", accountID))
	return &Session{Token: token, AccountID: accountID, ExpiresAt: expiresAt}, nil
}
