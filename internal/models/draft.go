package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	DraftIndex      = uint32
	DraftGroupIndex = uint32
)

// Draft group statuses
const (
	DraftGroupStatusUnfunded = "unfunded"
	DraftGroupStatusFunded   = "funded"
)

// Valid draft group transitions: from -> []to
var ValidDraftGroupTransitions = map[string][]string{
	DraftGroupStatusUnfunded: {DraftGroupStatusFunded},
	DraftGroupStatusFunded:   {},
}

func IsValidDraftGroupTransition(from, to string) bool {
	allowed, ok := ValidDraftGroupTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// DraftGroup collects drafts until a single deposit of exactly TotalAmount
// funds all of them.
type DraftGroup struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PayerID      string          `json:"payer_id,omitempty"`
	Funded       bool            `json:"funded"`
	DraftIndices []DraftIndex    `json:"draft_indices"`
}

func NewDraftGroup() *DraftGroup {
	return &DraftGroup{TotalAmount: decimal.Zero, DraftIndices: []DraftIndex{}}
}

func (g *DraftGroup) Clone() *DraftGroup {
	out := *g
	out.DraftIndices = append([]DraftIndex{}, g.DraftIndices...)
	return &out
}

func (g *DraftGroup) Status() string {
	if g.Funded {
		return DraftGroupStatusFunded
	}
	return DraftGroupStatusUnfunded
}

func (g *DraftGroup) AssertCanAddDraft() error {
	if g.Funded {
		return ErrGroupAlreadyFunded
	}
	return nil
}

func (g *DraftGroup) AssertCanConvert() error {
	if !g.Funded {
		return ErrGroupNotFunded
	}
	return nil
}

func (g *DraftGroup) AddDraft(id DraftIndex, amount decimal.Decimal) error {
	if err := g.AssertCanAddDraft(); err != nil {
		return err
	}
	for _, existing := range g.DraftIndices {
		if existing == id {
			return fmt.Errorf("%w: draft %d is already in the group", ErrInvariant, id)
		}
	}
	g.DraftIndices = append(g.DraftIndices, id)
	g.TotalAmount = g.TotalAmount.Add(amount)
	return nil
}

// RemoveDraft takes a converted draft out of the group's outstanding total.
func (g *DraftGroup) RemoveDraft(id DraftIndex, amount decimal.Decimal) error {
	pos := -1
	for i, existing := range g.DraftIndices {
		if existing == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("%w: draft %d is not in the group", ErrInvariant, id)
	}
	if g.TotalAmount.LessThan(amount) {
		return fmt.Errorf("%w: group total %s is below draft amount %s", ErrInvariant, g.TotalAmount, amount)
	}
	g.DraftIndices = append(g.DraftIndices[:pos], g.DraftIndices[pos+1:]...)
	g.TotalAmount = g.TotalAmount.Sub(amount)
	return nil
}

// Fund marks the group funded by payer. The amount must match the total exactly.
func (g *DraftGroup) Fund(payer string, amount decimal.Decimal) error {
	if !IsValidDraftGroupTransition(g.Status(), DraftGroupStatusFunded) {
		return ErrGroupAlreadyFunded
	}
	if !g.TotalAmount.Equal(amount) {
		return fmt.Errorf("%w: expected %s, got %s", ErrDepositAmountMismatch, g.TotalAmount, amount)
	}
	g.Funded = true
	g.PayerID = payer
	return nil
}

// Draft is a lockup template waiting for its group to be funded.
type Draft struct {
	DraftGroupID DraftGroupIndex `json:"draft_group_id"`
	Lockup       Lockup          `json:"lockup"`
}

func (d *Draft) Clone() *Draft {
	out := *d
	out.Lockup = *d.Lockup.Clone()
	return &out
}

func (d *Draft) TotalBalance() decimal.Decimal {
	return d.Lockup.TotalBalance()
}

// ValidateNew checks the embedded lockup against its own total. The payer is
// not known until the group is funded.
func (d *Draft) ValidateNew() error {
	return d.Lockup.validateTemplate(d.TotalBalance())
}

// IntoLockup turns the draft into a real lockup paid for by payer.
func (d *Draft) IntoLockup(payer string) *Lockup {
	l := d.Lockup.Clone()
	if l.TerminationConfig != nil {
		l.TerminationConfig.PayerID = payer
	}
	return l
}

type DraftGroupView struct {
	ID           DraftGroupIndex `json:"id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PayerID      string          `json:"payer_id,omitempty"`
	Funded       bool            `json:"funded"`
	DraftIndices []DraftIndex    `json:"draft_indices"`
}

func (g *DraftGroup) View(id DraftGroupIndex) DraftGroupView {
	return DraftGroupView{
		ID:           id,
		TotalAmount:  g.TotalAmount,
		PayerID:      g.PayerID,
		Funded:       g.Funded,
		DraftIndices: g.DraftIndices,
	}
}

type DraftView struct {
	ID           DraftIndex      `json:"id"`
	DraftGroupID DraftGroupIndex `json:"draft_group_id"`
	Lockup       Lockup          `json:"lockup"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

func (d *Draft) View(id DraftIndex) DraftView {
	return DraftView{
		ID:           id,
		DraftGroupID: d.DraftGroupID,
		Lockup:       d.Lockup,
		TotalBalance: d.TotalBalance(),
	}
}
