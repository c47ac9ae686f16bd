package ton

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

type LiteServerConfig struct {
	Network string // mainnet/testnet
	Host    string
	Port    int
	Key     string
}

// Connect establishes a connection to the TON network.
// If Host + Key are set, connects to a specific lite server.
// Otherwise, auto-discovers lite servers from the global TON config based on Network.
func Connect(ctx context.Context, cfg LiteServerConfig, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.Host != "" && cfg.Key != "" {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.Key); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		configURL := "https://ton.org/testnet-global.config.json"
		if isMainnet(cfg.Network) {
			configURL = "https://ton.org/global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.Network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if isMainnet(cfg.Network) {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return ton.NewAPIClient(client, proofPolicy).WithRetry(), nil
}

func isMainnet(network string) bool {
	return strings.ToLower(network) == "mainnet"
}

// MessageTTL bounds how long a hot wallet message can wait to be included.
// A message not on chain by then never will be.
const MessageTTL = 3 * time.Minute

// Wallet pays out of the hot wallet. Amounts are nanoTON.
type Wallet struct {
	api ton.APIClientWrapped
	w   *wallet.Wallet
	log *zap.Logger
}

// NewWallet opens the V4R2 hot wallet derived from a space separated seed phrase.
func NewWallet(api ton.APIClientWrapped, seed string, log *zap.Logger) (*Wallet, error) {
	words := strings.Fields(seed)
	if len(words) == 0 {
		return nil, fmt.Errorf("empty wallet seed")
	}
	w, err := wallet.FromSeed(api, words, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	if spec, ok := w.GetSpec().(*wallet.SpecV4R2); ok {
		spec.SetMessagesTTL(uint32(MessageTTL / time.Second))
	}
	log.Info("hot wallet opened", zap.String("address", w.WalletAddress().String()))
	return &Wallet{api: api, w: w, log: log}, nil
}

func (w *Wallet) Address() *address.Address {
	return w.w.WalletAddress()
}

// Transfer broadcasts amount with a text comment. Errors raised before the
// message leaves wrap models.ErrTransferNotSent. A failed broadcast may
// still have reached the network, so its error does not.
func (w *Wallet) Transfer(ctx context.Context, to string, amount decimal.Decimal, memo string) error {
	dst, err := ParseAccount(to)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferNotSent, err)
	}
	if !amount.IsInteger() || amount.IsNegative() {
		return fmt.Errorf("%w: amount must be a non-negative nanoTON integer, got %s", models.ErrTransferNotSent, amount)
	}
	msg, err := w.w.BuildTransfer(dst, tlb.FromNanoTON(amount.BigInt()), dst.IsBounceable(), memo)
	if err != nil {
		return fmt.Errorf("%w: build transfer: %v", models.ErrTransferNotSent, err)
	}
	ext, err := w.w.BuildExternalMessageForMany(ctx, []*wallet.Message{msg})
	if err != nil {
		return fmt.Errorf("%w: build external message: %v", models.ErrTransferNotSent, err)
	}
	if err := w.api.SendExternalMessage(ctx, ext); err != nil {
		return fmt.Errorf("send %s to %s: %w", amount, to, err)
	}
	w.log.Info("transfer sent", zap.String("to", to), zap.String("amount", amount.String()), zap.String("memo", memo))
	return nil
}

// NoWallet is used when no hot wallet seed is configured. Every transfer
// fails before sending, so payouts are compensated and nothing leaves the
// ledger.
type NoWallet struct{}

func (NoWallet) Transfer(_ context.Context, to string, amount decimal.Decimal, _ string) error {
	return fmt.Errorf("%w: hot wallet not configured: cannot send %s to %s", models.ErrTransferNotSent, amount, to)
}
