// Package memstore is an in-process Store used by tests and by the API when
// no database is configured.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

type state struct {
	lockups        []*models.Lockup
	accountLockups map[string][]models.LockupIndex
	nextDraftID    models.DraftIndex
	drafts         map[models.DraftIndex]*models.Draft
	draftGroups    []*models.DraftGroup
	whitelist      map[string]struct{}
	transfers      map[uuid.UUID]*models.Transfer
	deposits       map[string]models.Deposit
	audit          []models.AuditLog
}

// Entities are stored as private clones and never mutated in place, so a
// copy of the containers is enough to give a transaction its own view.
func (s *state) clone() *state {
	return &state{
		lockups:        slices.Clone(s.lockups),
		accountLockups: maps.Clone(s.accountLockups),
		nextDraftID:    s.nextDraftID,
		drafts:         maps.Clone(s.drafts),
		draftGroups:    slices.Clone(s.draftGroups),
		whitelist:      maps.Clone(s.whitelist),
		transfers:      maps.Clone(s.transfers),
		deposits:       maps.Clone(s.deposits),
		audit:          slices.Clone(s.audit),
	}
}

type Store struct {
	mu    deadlock.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: &state{
			accountLockups: map[string][]models.LockupIndex{},
			drafts:         map[models.DraftIndex]*models.Draft{},
			whitelist:      map[string]struct{}{},
			transfers:      map[uuid.UUID]*models.Transfer{},
			deposits:       map[string]models.Deposit{},
		},
		now: time.Now,
	}
}

// WithClock makes transfer timestamps follow now.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &tx{state: s.state.clone(), now: s.now}
	if err := fn(work); err != nil {
		return err
	}
	s.state = work.state
	return nil
}

type tx struct {
	state *state
	now   func() time.Time
}

// --- Lockups ---

func (t *tx) NumLockups(context.Context) (uint32, error) {
	return uint32(len(t.state.lockups)), nil
}

func (t *tx) GetLockup(_ context.Context, idx models.LockupIndex) (*models.Lockup, error) {
	if int(idx) >= len(t.state.lockups) {
		return nil, models.ErrLockupNotFound
	}
	return t.state.lockups[idx].Clone(), nil
}

func (t *tx) InsertLockup(_ context.Context, l *models.Lockup) (models.LockupIndex, error) {
	t.state.lockups = append(t.state.lockups, l.Clone())
	return models.LockupIndex(len(t.state.lockups) - 1), nil
}

func (t *tx) ReplaceLockup(_ context.Context, idx models.LockupIndex, l *models.Lockup) error {
	if int(idx) >= len(t.state.lockups) {
		return models.ErrLockupNotFound
	}
	t.state.lockups[idx] = l.Clone()
	return nil
}

func (t *tx) GetAccountLockups(_ context.Context, accountID string) ([]models.LockupIndex, error) {
	return slices.Clone(t.state.accountLockups[accountID]), nil
}

func (t *tx) SaveAccountLockups(_ context.Context, accountID string, indices []models.LockupIndex) error {
	if len(indices) == 0 {
		delete(t.state.accountLockups, accountID)
		return nil
	}
	t.state.accountLockups[accountID] = slices.Clone(indices)
	return nil
}

// --- Drafts ---

func (t *tx) NextDraftID(context.Context) (models.DraftIndex, error) {
	id := t.state.nextDraftID
	t.state.nextDraftID++
	return id, nil
}

func (t *tx) InsertDraft(_ context.Context, id models.DraftIndex, d *models.Draft) error {
	if _, ok := t.state.drafts[id]; ok {
		return fmt.Errorf("%w: draft %d already exists", models.ErrInvariant, id)
	}
	t.state.drafts[id] = d.Clone()
	return nil
}

func (t *tx) GetDraft(_ context.Context, id models.DraftIndex) (*models.Draft, error) {
	d, ok := t.state.drafts[id]
	if !ok {
		return nil, models.ErrDraftNotFound
	}
	return d.Clone(), nil
}

func (t *tx) RemoveDraft(_ context.Context, id models.DraftIndex) (*models.Draft, error) {
	d, ok := t.state.drafts[id]
	if !ok {
		return nil, models.ErrDraftNotFound
	}
	delete(t.state.drafts, id)
	return d.Clone(), nil
}

func (t *tx) NumDraftGroups(context.Context) (uint32, error) {
	return uint32(len(t.state.draftGroups)), nil
}

func (t *tx) InsertDraftGroup(_ context.Context, g *models.DraftGroup) (models.DraftGroupIndex, error) {
	t.state.draftGroups = append(t.state.draftGroups, g.Clone())
	return models.DraftGroupIndex(len(t.state.draftGroups) - 1), nil
}

func (t *tx) GetDraftGroup(_ context.Context, id models.DraftGroupIndex) (*models.DraftGroup, error) {
	if int(id) >= len(t.state.draftGroups) {
		return nil, models.ErrDraftGroupNotFound
	}
	return t.state.draftGroups[id].Clone(), nil
}

func (t *tx) ReplaceDraftGroup(_ context.Context, id models.DraftGroupIndex, g *models.DraftGroup) error {
	if int(id) >= len(t.state.draftGroups) {
		return models.ErrDraftGroupNotFound
	}
	t.state.draftGroups[id] = g.Clone()
	return nil
}

// --- Whitelist ---

func (t *tx) IsWhitelisted(_ context.Context, accountID string) (bool, error) {
	_, ok := t.state.whitelist[accountID]
	return ok, nil
}

func (t *tx) AddToWhitelist(_ context.Context, accountID string) error {
	t.state.whitelist[accountID] = struct{}{}
	return nil
}

func (t *tx) RemoveFromWhitelist(_ context.Context, accountID string) error {
	delete(t.state.whitelist, accountID)
	return nil
}

func (t *tx) ListWhitelist(context.Context) ([]string, error) {
	out := slices.Collect(maps.Keys(t.state.whitelist))
	sort.Strings(out)
	return out, nil
}

// --- Transfers ---

func (t *tx) InsertTransfer(_ context.Context, tr *models.Transfer) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if _, ok := t.state.transfers[tr.ID]; ok {
		return fmt.Errorf("%w: transfer %s already exists", models.ErrInvariant, tr.ID)
	}
	tr.CreatedAt = t.now()
	tr.UpdatedAt = tr.CreatedAt
	t.state.transfers[tr.ID] = tr.Clone()
	return nil
}

func (t *tx) GetTransfer(_ context.Context, id uuid.UUID) (*models.Transfer, error) {
	tr, ok := t.state.transfers[id]
	if !ok {
		return nil, models.ErrTransferNotFound
	}
	return tr.Clone(), nil
}

func (t *tx) UpdateTransfer(_ context.Context, tr *models.Transfer) error {
	cur, ok := t.state.transfers[tr.ID]
	if !ok || cur.Status != models.TransferStatusPending {
		return models.ErrTransferNotPending
	}
	next := cur.Clone()
	next.Status = tr.Status
	next.Error = tr.Error
	next.UpdatedAt = t.now()
	tr.UpdatedAt = next.UpdatedAt
	t.state.transfers[tr.ID] = next
	return nil
}

func (t *tx) ListPendingTransfers(_ context.Context, updatedBefore time.Time, limit int) ([]*models.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*models.Transfer
	for _, tr := range t.state.transfers {
		if tr.Status == models.TransferStatusPending && tr.UpdatedAt.Before(updatedBefore) {
			out = append(out, tr.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) CountPendingTransfers(context.Context) (int, error) {
	n := 0
	for _, tr := range t.state.transfers {
		if tr.Status == models.TransferStatusPending {
			n++
		}
	}
	return n, nil
}

// --- Deposits ---

func (t *tx) HasDeposit(_ context.Context, txHash string) (bool, error) {
	_, ok := t.state.deposits[txHash]
	return ok, nil
}

func (t *tx) InsertDeposit(_ context.Context, d *models.Deposit) error {
	if _, ok := t.state.deposits[d.TxHash]; ok {
		return fmt.Errorf("%w: %s", models.ErrDepositProcessed, d.TxHash)
	}
	d.CreatedAt = t.now()
	t.state.deposits[d.TxHash] = *d
	return nil
}

// --- Audit ---

func (t *tx) LogAudit(_ context.Context, entry models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = t.now()
	t.state.audit = append(t.state.audit, entry)
	return nil
}

func (t *tx) GetAuditByEntity(_ context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditLog
	for i := len(t.state.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if e := t.state.audit[i]; e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
