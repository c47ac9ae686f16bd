package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TON_HOT_WALLET_ADDRESS", "EQHot")
	t.Setenv("TOKEN_ACCOUNT_ID", "")
	t.Setenv("POSTGRES_DSN", "")

	cfg := Load()
	if cfg.TokenAccountID != "EQHot" {
		t.Errorf("token account should default to the hot wallet, got %q", cfg.TokenAccountID)
	}
	if !cfg.UseMemoryStore() {
		t.Error("empty POSTGRES_DSN must select the memory store")
	}
	if cfg.TransferTimeout != 60*time.Second {
		t.Errorf("TransferTimeout = %s", cfg.TransferTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEPOSIT_WHITELIST", " EQa , ,EQb")
	t.Setenv("TRANSFER_RETRY_AFTER", "90s")
	t.Setenv("INDEXER_BATCH_SIZE", "oops")

	cfg := Load()
	if len(cfg.DepositWhitelist) != 2 || cfg.DepositWhitelist[0] != "EQa" || cfg.DepositWhitelist[1] != "EQb" {
		t.Errorf("DepositWhitelist = %q", cfg.DepositWhitelist)
	}
	if cfg.TransferRetryAfter != 90*time.Second {
		t.Errorf("TransferRetryAfter = %s", cfg.TransferRetryAfter)
	}
	if cfg.IndexerBatchSize != 20 {
		t.Errorf("invalid int must fall back to the default, got %d", cfg.IndexerBatchSize)
	}
}
