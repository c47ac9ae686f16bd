package services

import (
	"context"
	"fmt"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"go.uber.org/zap"
)

// DraftService stages lockups in draft groups until a single deposit funds
// the whole group.
type DraftService struct {
	store     repositories.Store
	publisher events.Publisher
	resolve   AccountResolver
	log       *zap.Logger
}

func NewDraftService(
	store repositories.Store,
	publisher events.Publisher,
	resolve AccountResolver,
	log *zap.Logger,
) *DraftService {
	return &DraftService{
		store:     store,
		publisher: publisher,
		resolve:   resolve,
		log:       log,
	}
}

func (s *DraftService) CreateDraftGroup(ctx context.Context, caller string) (models.DraftGroupIndex, error) {
	var id models.DraftGroupIndex
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		if err := assertWhitelisted(ctx, tx, caller); err != nil {
			return err
		}
		var err error
		id, err = tx.InsertDraftGroup(ctx, models.NewDraftGroup())
		if err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     "draft_group_created",
			EntityType: "draft_group",
			EntityID:   fmt.Sprint(id),
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.NumDraftGroups.Set(float64(id + 1))
	publishAll(ctx, s.publisher, s.log, events.Event{
		Type:    events.EventDraftGroupCreated,
		Payload: map[string]any{"account_id": caller, "draft_group_id": id},
	})
	return id, nil
}

func (s *DraftService) CreateDraft(ctx context.Context, caller string, d models.Draft) (models.DraftIndex, error) {
	ids, err := s.CreateDrafts(ctx, caller, []models.Draft{d})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CreateDrafts adds all drafts or none of them. Ids are returned in input order.
// The caller's drafts are left untouched; accounts are resolved on copies.
func (s *DraftService) CreateDrafts(ctx context.Context, caller string, input []models.Draft) ([]models.DraftIndex, error) {
	drafts := make([]models.Draft, len(input))
	for i := range input {
		if err := input[i].ValidateNew(); err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
		drafts[i] = *input[i].Clone()
		if err := resolveLockupAccounts(s.resolve, &drafts[i].Lockup); err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
	}

	var ids []models.DraftIndex
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		ids = make([]models.DraftIndex, 0, len(drafts))
		if err := assertWhitelisted(ctx, tx, caller); err != nil {
			return err
		}
		for i := range drafts {
			d := &drafts[i]
			g, err := tx.GetDraftGroup(ctx, d.DraftGroupID)
			if err != nil {
				return err
			}
			if err := g.AssertCanAddDraft(); err != nil {
				return err
			}

			id, err := tx.NextDraftID(ctx)
			if err != nil {
				return err
			}
			if err := tx.InsertDraft(ctx, id, d); err != nil {
				return err
			}
			if err := g.AddDraft(id, d.TotalBalance()); err != nil {
				return err
			}
			if err := tx.ReplaceDraftGroup(ctx, d.DraftGroupID, g); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     "drafts_created",
			EntityType: "account",
			EntityID:   caller,
			Meta:       map[string]any{"draft_ids": ids},
		})
	})
	if err != nil {
		return nil, err
	}

	evs := make([]events.Event, 0, len(ids))
	for i, id := range ids {
		evs = append(evs, events.Event{
			Type: events.EventDraftCreated,
			Payload: map[string]any{
				"account_id":     drafts[i].Lockup.AccountID,
				"draft_id":       id,
				"draft_group_id": drafts[i].DraftGroupID,
				"total":          drafts[i].TotalBalance().String(),
			},
		})
	}
	publishAll(ctx, s.publisher, s.log, evs...)
	return ids, nil
}

func (s *DraftService) ConvertDraft(ctx context.Context, caller string, id models.DraftIndex) (models.LockupIndex, error) {
	idx, err := s.ConvertDrafts(ctx, caller, []models.DraftIndex{id})
	if err != nil {
		return 0, err
	}
	return idx[0], nil
}

// ConvertDrafts turns drafts of funded groups into lockups, all or nothing.
// Anyone may convert: the lockups only ever pay their own accounts.
func (s *DraftService) ConvertDrafts(ctx context.Context, caller string, ids []models.DraftIndex) ([]models.LockupIndex, error) {
	var (
		indices []models.LockupIndex
		evs     []events.Event
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		indices = make([]models.LockupIndex, 0, len(ids))
		evs = evs[:0]
		for _, id := range ids {
			d, err := tx.RemoveDraft(ctx, id)
			if err != nil {
				return fmt.Errorf("%w: %d", err, id)
			}
			g, err := tx.GetDraftGroup(ctx, d.DraftGroupID)
			if err != nil {
				return err
			}
			if err := g.AssertCanConvert(); err != nil {
				return err
			}
			if err := g.RemoveDraft(id, d.TotalBalance()); err != nil {
				return err
			}
			if err := tx.ReplaceDraftGroup(ctx, d.DraftGroupID, g); err != nil {
				return err
			}

			l := d.IntoLockup(g.PayerID)
			idx, err := insertLockup(ctx, tx, l)
			if err != nil {
				return err
			}
			indices = append(indices, idx)
			evs = append(evs, events.Event{
				Type: events.EventDraftConverted,
				Payload: map[string]any{
					"account_id":     l.AccountID,
					"draft_id":       id,
					"draft_group_id": d.DraftGroupID,
					"index":          idx,
					"total":          l.TotalBalance().String(),
				},
			})
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     "drafts_converted",
			EntityType: "account",
			EntityID:   caller,
			Meta:       map[string]any{"draft_ids": ids, "lockup_indices": indices},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.LockupsCreated.WithLabelValues("draft").Add(float64(len(indices)))
	publishAll(ctx, s.publisher, s.log, evs...)
	for i, idx := range indices {
		s.log.Info("created new lockup from draft",
			zap.Uint32("draft_id", ids[i]),
			zap.Uint32("index", idx),
		)
	}
	return indices, nil
}

// --- Views ---

func (s *DraftService) GetNumDraftGroups(ctx context.Context) (uint32, error) {
	var n uint32
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		n, err = tx.NumDraftGroups(ctx)
		return err
	})
	if err == nil {
		metrics.NumDraftGroups.Set(float64(n))
	}
	return n, err
}

func (s *DraftService) GetDraftGroup(ctx context.Context, id models.DraftGroupIndex) (*models.DraftGroupView, error) {
	var view *models.DraftGroupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		g, err := tx.GetDraftGroup(ctx, id)
		if err != nil {
			return err
		}
		v := g.View(id)
		view = &v
		return nil
	})
	return view, err
}

// GetDraftGroups returns groups with ids in [from, to), clipped to the
// number of groups.
func (s *DraftService) GetDraftGroups(ctx context.Context, from, to uint32) ([]models.DraftGroupView, error) {
	var views []models.DraftGroupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		n, err := tx.NumDraftGroups(ctx)
		if err != nil {
			return err
		}
		from, to, err := checkPage(from, to, n)
		if err != nil {
			return err
		}
		views = make([]models.DraftGroupView, 0, to-from)
		for id := from; id < to; id++ {
			g, err := tx.GetDraftGroup(ctx, id)
			if err != nil {
				return err
			}
			views = append(views, g.View(id))
		}
		return nil
	})
	return views, err
}

func (s *DraftService) GetDraft(ctx context.Context, id models.DraftIndex) (*models.DraftView, error) {
	var view *models.DraftView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		d, err := tx.GetDraft(ctx, id)
		if err != nil {
			return err
		}
		v := d.View(id)
		view = &v
		return nil
	})
	return view, err
}

// GetDrafts returns the drafts that still exist among ids, in order.
func (s *DraftService) GetDrafts(ctx context.Context, ids []models.DraftIndex) ([]models.DraftView, error) {
	var views []models.DraftView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		views = make([]models.DraftView, 0, len(ids))
		for _, id := range ids {
			d, err := tx.GetDraft(ctx, id)
			if models.KindOf(err) == models.KindNotFound {
				continue
			}
			if err != nil {
				return err
			}
			views = append(views, d.View(id))
		}
		return nil
	})
	return views, err
}
