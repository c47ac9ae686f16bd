package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ledgerLockKey serializes ledger transactions across API and worker processes.
const ledgerLockKey int64 = 0x4c4f434b5550

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type pgTx struct {
	*LockupRepo
	*DraftRepo
	*WhitelistRepo
	*TransferRepo
	*DepositRepo
	*AuditRepo
}

func newPgTx(db querier) *pgTx {
	return &pgTx{
		LockupRepo:    NewLockupRepo(db),
		DraftRepo:     NewDraftRepo(db),
		WhitelistRepo: NewWhitelistRepo(db),
		TransferRepo:  NewTransferRepo(db),
		DepositRepo:   NewDepositRepo(db),
		AuditRepo:     NewAuditRepo(db),
	}
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	if err := fn(newPgTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// numeric columns travel as text so that 128-bit balances never pass
// through a float.
func scanBalance(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad numeric %q: %w", s, err)
	}
	return d, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
