package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DraftGroupConfirmation is the deposit message that funds a draft group.
type DraftGroupConfirmation struct {
	DraftGroupID models.DraftGroupIndex `json:"draft_group_id"`
}

// DepositService handles incoming token transfers. The message attached to
// a transfer is either a Lockup to create or a DraftGroupConfirmation.
type DepositService struct {
	store     repositories.Store
	transfers *TransferService
	publisher events.Publisher
	resolve   AccountResolver
	log       *zap.Logger
}

func NewDepositService(
	store repositories.Store,
	transfers *TransferService,
	publisher events.Publisher,
	resolve AccountResolver,
	log *zap.Logger,
) *DepositService {
	return &DepositService{
		store:     store,
		transfers: transfers,
		publisher: publisher,
		resolve:   resolve,
		log:       log,
	}
}

// DepositResult reports what happened to a deposit. Refunded deposits are
// not errors: the funds go back to the sender and Accepted is zero.
type DepositResult struct {
	Accepted     decimal.Decimal         `json:"accepted"`
	LockupIndex  *models.LockupIndex     `json:"lockup_index,omitempty"`
	DraftGroupID *models.DraftGroupIndex `json:"draft_group_id,omitempty"`
	Refunded     bool                    `json:"refunded"`
	Reason       string                  `json:"reason,omitempty"`
	// Duplicate is set when the chain transaction was handled before and
	// nothing was done this time.
	Duplicate bool `json:"duplicate,omitempty"`
}

// OnTransfer accepts amount sent by sender with msg. Any ledger error
// (sender not whitelisted, bad message, invalid lockup, amount mismatch,
// group already funded) refunds the deposit. Only infrastructure errors are
// returned, in which case nothing was recorded and the deposit may be
// processed again.
func (s *DepositService) OnTransfer(ctx context.Context, sender string, amount decimal.Decimal, msg string) (*DepositResult, error) {
	return s.onTransfer(ctx, "", sender, amount, msg)
}

// OnChainTransfer is OnTransfer for a deposit identified by its chain
// transaction. The hash is stored in the same transaction as the ledger
// changes, so a transaction handed over twice is credited or refunded once
// and reported as Duplicate afterwards.
func (s *DepositService) OnChainTransfer(ctx context.Context, txHash, sender string, amount decimal.Decimal, msg string) (*DepositResult, error) {
	if txHash == "" {
		return nil, fmt.Errorf("%w: deposit without a transaction hash", models.ErrInvariant)
	}
	return s.onTransfer(ctx, txHash, sender, amount, msg)
}

func (s *DepositService) onTransfer(ctx context.Context, txHash, sender string, amount decimal.Decimal, msg string) (*DepositResult, error) {
	if err := models.ValidateBalance(amount); err != nil {
		return nil, err
	}

	var (
		res *DepositResult
		ev  events.Event
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		if err := recordDeposit(ctx, tx, txHash, sender, amount, false); err != nil {
			return err
		}
		if err := assertWhitelisted(ctx, tx, sender); err != nil {
			return err
		}
		lockup, confirmation, err := s.parseMessage(msg)
		if err != nil {
			return err
		}

		if lockup != nil {
			if cfg := lockup.TerminationConfig; cfg != nil && cfg.PayerID == "" {
				cfg.PayerID = sender
			}
			if err := lockup.ValidateNew(amount, sender); err != nil {
				return err
			}
			idx, err := insertLockup(ctx, tx, lockup)
			if err != nil {
				return err
			}
			res = &DepositResult{Accepted: amount, LockupIndex: &idx}
			ev = events.Event{
				Type: events.EventLockupCreated,
				Payload: map[string]any{
					"account_id": lockup.AccountID,
					"index":      idx,
					"total":      amount.String(),
					"sender":     sender,
				},
			}
			return tx.LogAudit(ctx, models.AuditLog{
				Actor:      sender,
				ActorType:  models.ActorAccount,
				Action:     "lockup_created",
				EntityType: "lockup",
				EntityID:   fmt.Sprint(idx),
				Meta:       map[string]any{"account_id": lockup.AccountID, "total": amount.String()},
			})
		}

		id := confirmation.DraftGroupID
		g, err := tx.GetDraftGroup(ctx, id)
		if err != nil {
			return err
		}
		if err := g.Fund(sender, amount); err != nil {
			return err
		}
		if err := tx.ReplaceDraftGroup(ctx, id, g); err != nil {
			return err
		}
		res = &DepositResult{Accepted: amount, DraftGroupID: &id}
		ev = events.Event{
			Type: events.EventDraftGroupFunded,
			Payload: map[string]any{
				"account_id":     sender,
				"draft_group_id": id,
				"amount":         amount.String(),
			},
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      sender,
			ActorType:  models.ActorAccount,
			Action:     "draft_group_funded",
			EntityType: "draft_group",
			EntityID:   fmt.Sprint(id),
			Meta:       map[string]any{"amount": amount.String()},
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrDepositProcessed) {
			return s.duplicate(txHash, sender), nil
		}
		if models.KindOf(err) == models.KindUnknown || models.KindOf(err) == models.KindInvariant {
			return nil, err
		}
		return s.refund(ctx, txHash, sender, amount, err)
	}

	if res.LockupIndex != nil {
		metrics.LockupsCreated.WithLabelValues("deposit").Inc()
		s.log.Info("created new lockup", zap.Uint32("index", *res.LockupIndex), zap.String("sender", sender))
	} else {
		s.log.Info("funded draft group", zap.Uint32("draft_group_id", *res.DraftGroupID), zap.String("sender", sender))
	}
	publishAll(ctx, s.publisher, s.log, ev)
	return res, nil
}

// parseMessage tells a Lockup from a DraftGroupConfirmation by its keys.
func (s *DepositService) parseMessage(msg string) (*models.Lockup, *DraftGroupConfirmation, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg), &probe); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrUnexpectedDepositMessage, err)
	}

	if _, ok := probe["account_id"]; ok {
		var l models.Lockup
		if err := strictUnmarshal(msg, &l); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", models.ErrUnexpectedDepositMessage, err)
		}
		if err := resolveLockupAccounts(s.resolve, &l); err != nil {
			return nil, nil, err
		}
		return &l, nil, nil
	}

	if _, ok := probe["draft_group_id"]; ok {
		var c DraftGroupConfirmation
		if err := strictUnmarshal(msg, &c); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", models.ErrUnexpectedDepositMessage, err)
		}
		return nil, &c, nil
	}

	return nil, nil, models.ErrUnexpectedDepositMessage
}

func strictUnmarshal(msg string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(msg)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func recordDeposit(ctx context.Context, tx repositories.Tx, txHash, sender string, amount decimal.Decimal, refunded bool) error {
	if txHash == "" {
		return nil
	}
	return tx.InsertDeposit(ctx, &models.Deposit{TxHash: txHash, Sender: sender, Amount: amount, Refunded: refunded})
}

func (s *DepositService) duplicate(txHash, sender string) *DepositResult {
	s.log.Info("deposit already processed", zap.String("tx_hash", txHash), zap.String("sender", sender))
	return &DepositResult{Accepted: decimal.Zero, Duplicate: true}
}

func (s *DepositService) refund(ctx context.Context, txHash, sender string, amount decimal.Decimal, reason error) (*DepositResult, error) {
	res := &DepositResult{Accepted: decimal.Zero, Refunded: true, Reason: reason.Error()}

	var transfer *models.Transfer
	if amount.IsPositive() {
		transfer = newPendingTransfer(models.TransferKindRefund, sender, amount, "Refund: "+reason.Error())
	}
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		if err := recordDeposit(ctx, tx, txHash, sender, amount, true); err != nil {
			return err
		}
		if transfer == nil {
			return nil
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      sender,
			ActorType:  models.ActorAccount,
			Action:     "deposit_refunded",
			EntityType: "transfer",
			EntityID:   transfer.ID.String(),
			Meta:       map[string]any{"amount": amount.String(), "reason": reason.Error()},
		})
	})
	if errors.Is(err, models.ErrDepositProcessed) {
		return s.duplicate(txHash, sender), nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Warn("refunding deposit",
		zap.String("sender", sender),
		zap.String("amount", amount.String()),
		zap.String("reason", reason.Error()),
	)
	metrics.Refunds.WithLabelValues(models.KindOf(reason).String()).Inc()
	publishAll(ctx, s.publisher, s.log, events.Event{
		Type: events.EventRefund,
		Payload: map[string]any{
			"account_id": sender,
			"amount":     amount.String(),
			"reason":     reason.Error(),
		},
	})

	if transfer == nil {
		return res, nil
	}
	if _, err := s.transfers.Dispatch(ctx, transfer); err != nil {
		return nil, err
	}
	return res, nil
}
