// Package indexer watches the hot wallet. Every incoming transfer with a
// text comment goes to the deposit handler, and every outgoing payout is
// reported so that its pending transfer can be settled.
package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/services"
	ledgerton "github.com/ft-lockup/backend/internal/ton"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "ton-indexer:cursor:lt"
	redisCursorHash = "ton-indexer:cursor:hash"
	redisSyncedAt   = "ton-indexer:synced-at"
)

// DepositHandler is the ledger's entry point for incoming funds. It must
// handle each transaction hash at most once.
type DepositHandler interface {
	OnChainTransfer(ctx context.Context, txHash, sender string, amount decimal.Decimal, msg string) (*services.DepositResult, error)
}

// TransferSettler marks payouts seen on chain as sent.
type TransferSettler interface {
	ConfirmSent(ctx context.Context, id uuid.UUID) error
}

// Deposit is an incoming transfer worth handing to the ledger.
type Deposit struct {
	LT      uint64
	Hash    []byte
	Sender  string // canonical account id
	Amount  decimal.Decimal
	Comment string
}

type Indexer struct {
	api       ton.APIClientWrapped
	addr      *address.Address
	rdb       redis.UniversalClient
	deposits  DepositHandler
	transfers TransferSettler
	interval  time.Duration
	batchSize int
	log       *zap.Logger

	ready bool
}

func New(
	api ton.APIClientWrapped,
	addr *address.Address,
	rdb redis.UniversalClient,
	deposits DepositHandler,
	transfers TransferSettler,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Indexer {
	return &Indexer{
		api:       api,
		addr:      addr,
		rdb:       rdb,
		deposits:  deposits,
		transfers: transfers,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Run polls until ctx is done.
func (ix *Indexer) Run(ctx context.Context) {
	if err := ix.initCursor(ctx); err != nil {
		ix.log.Error("failed to init cursor, will retry", zap.Error(err))
	}

	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ix.cycle(ctx); err != nil {
				ix.log.Error("poll cycle failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (ix *Indexer) cycle(ctx context.Context) error {
	if !ix.ready {
		return ix.initCursor(ctx)
	}
	return ix.pollAndProcess(ctx)
}

// initCursor sets the initial cursor position on first run.
// On first run, it stores the current account LastTxLT so that only
// NEW transactions (arriving after startup) are processed.
func (ix *Indexer) initCursor(ctx context.Context) error {
	existing, err := ix.rdb.Get(ctx, redisCursorLT).Result()
	switch {
	case err == nil:
		ix.log.Info("resuming from saved cursor", zap.String("lt", existing))
		ix.ready = true
		return nil
	case !errors.Is(err, redis.Nil):
		return fmt.Errorf("load cursor: %w", err)
	}

	account, err := ix.getAccount(ctx)
	if err != nil {
		return err
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		if err := ix.rdb.Set(ctx, redisCursorLT, "0", 0).Err(); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		ix.log.Info("hot wallet not active yet, starting from LT=0")
		ix.ready = true
		return nil
	}

	if err := ix.saveCursor(ctx, account.LastTxLT, account.LastTxHash); err != nil {
		return err
	}
	ix.log.Info("cursor initialized at current account state (skipping historical transactions)",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
	ix.ready = true
	return nil
}

func (ix *Indexer) getAccount(ctx context.Context) (*tlb.Account, error) {
	block, err := ix.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}
	account, err := ix.api.GetAccount(ctx, block, ix.addr)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// loadCursorLT fails when the cursor is missing: starting over from the
// wallet's latest transaction would skip deposits.
func (ix *Indexer) loadCursorLT(ctx context.Context) (uint64, error) {
	val, err := ix.rdb.Get(ctx, redisCursorLT).Result()
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	lt, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cursor %q: %w", val, err)
	}
	return lt, nil
}

func (ix *Indexer) saveCursor(ctx context.Context, lt uint64, hash []byte) error {
	_, err := ix.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
		p.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// SyncedAt returns when the indexer last caught up with the hot wallet.
// Every hot wallet transaction made before that time has been processed.
// It is zero until the first full cycle.
func SyncedAt(ctx context.Context, rdb redis.UniversalClient) (time.Time, error) {
	sec, err := rdb.Get(ctx, redisSyncedAt).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load synced-at: %w", err)
	}
	return time.Unix(sec, 0), nil
}

func (ix *Indexer) markSynced(ctx context.Context, at time.Time) error {
	if err := ix.rdb.Set(ctx, redisSyncedAt, at.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("save synced-at: %w", err)
	}
	return nil
}

// pollAndProcess runs a single poll cycle. The cursor advances one
// transaction at a time, so a deposit that fails with an infrastructure
// error is retried on the next cycle. Deposits are deduplicated by the
// ledger, so replaying a transaction after a lost cursor write is safe.
func (ix *Indexer) pollAndProcess(ctx context.Context) error {
	cursorLT, err := ix.loadCursorLT(ctx)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	account, err := ix.getAccount(ctx)
	if err != nil {
		return err
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 || account.LastTxLT <= cursorLT {
		return ix.markSynced(ctx, startedAt)
	}

	newTxs, err := ix.fetchNewTransactions(ctx, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	if len(newTxs) > 0 {
		ix.log.Info("found new transactions", zap.Int("count", len(newTxs)))
	}

	for _, tx := range newTxs {
		if err := ix.processTx(ctx, tx); err != nil {
			return fmt.Errorf("process tx %d: %w", tx.LT, err)
		}
		if err := ix.saveCursor(ctx, tx.LT, tx.Hash); err != nil {
			return err
		}
	}
	return ix.markSynced(ctx, startedAt)
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func (ix *Indexer) fetchNewTransactions(ctx context.Context, account *tlb.Account, cursorLT uint64) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := ix.api.ListTransactions(ctx, ix.addr, uint32(ix.batchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < ix.batchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

func (ix *Indexer) processTx(ctx context.Context, tx *tlb.Transaction) error {
	if err := ix.settlePayouts(ctx, tx); err != nil {
		return err
	}

	dep, ok := IncomingDeposit(tx)
	if !ok {
		return nil
	}

	ix.log.Info("incoming deposit detected",
		zap.Uint64("lt", dep.LT),
		zap.String("from", dep.Sender),
		zap.String("amount", dep.Amount.String()),
	)

	res, err := ix.deposits.OnChainTransfer(ctx, hex.EncodeToString(dep.Hash), dep.Sender, dep.Amount, dep.Comment)
	if err != nil {
		return err
	}
	if res.Refunded {
		ix.log.Info("deposit refunded", zap.Uint64("lt", dep.LT), zap.String("reason", res.Reason))
	}
	return nil
}

// settlePayouts confirms the transfers whose messages tx sent out.
func (ix *Indexer) settlePayouts(ctx context.Context, tx *tlb.Transaction) error {
	ids, err := OutgoingTransfers(tx)
	if err != nil {
		return fmt.Errorf("read outgoing messages: %w", err)
	}
	return ix.confirm(ctx, ids)
}

// confirm skips ids the ledger cannot settle and stops at the first
// infrastructure error.
func (ix *Indexer) confirm(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		err := ix.transfers.ConfirmSent(ctx, id)
		switch {
		case err == nil:
		case models.KindOf(err) == models.KindNotFound:
			ix.log.Warn("outgoing message references an unknown transfer", zap.String("transfer_id", id.String()))
		case models.KindOf(err) == models.KindInvariant:
			ix.log.Error("payout reached the chain after it was reverted", zap.String("transfer_id", id.String()), zap.Error(err))
		default:
			return err
		}
	}
	return nil
}

// OutgoingTransfers returns the ids of ledger transfers paid by tx. Only
// transactions started by the wallet's own external message pay out.
func OutgoingTransfers(tx *tlb.Transaction) ([]uuid.UUID, error) {
	if tx.IO.Out == nil || tx.IO.In == nil || tx.IO.In.MsgType != tlb.MsgTypeExternalIn {
		return nil, nil
	}
	msgs, err := tx.IO.Out.ToSlice()
	if err != nil {
		return nil, err
	}
	return transferRefs(msgs), nil
}

func transferRefs(msgs []tlb.Message) []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range msgs {
		out, ok := m.Msg.(*tlb.InternalMessage)
		if !ok || out == nil {
			continue
		}
		if id, ok := services.ParseTransferRef(extractComment(out)); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// IncomingDeposit extracts a deposit from an incoming, non-bounced internal
// message carrying a text comment.
func IncomingDeposit(tx *tlb.Transaction) (*Deposit, bool) {
	if tx.IO.In == nil {
		return nil, false
	}
	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil || inMsg.Bounced {
		return nil, false
	}
	if inMsg.Amount.Nano().Sign() <= 0 {
		return nil, false
	}

	comment := extractComment(inMsg)
	if comment == "" {
		return nil, false
	}

	src := inMsg.SrcAddr
	if src == nil {
		return nil, false
	}
	return &Deposit{
		LT:      tx.LT,
		Hash:    tx.Hash,
		Sender:  ledgerton.AccountID(src.Workchain(), src.Data()),
		Amount:  decimal.NewFromBigInt(inMsg.Amount.Nano(), 0),
		Comment: comment,
	}, true
}

// extractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func extractComment(inMsg *tlb.InternalMessage) string {
	body := inMsg.Body
	if body == nil {
		return ""
	}

	slice := body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	text, err := slice.LoadStringSnake()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
