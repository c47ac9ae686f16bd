package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidDraftGroupTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{DraftGroupStatusUnfunded, DraftGroupStatusFunded, true},
		{DraftGroupStatusFunded, DraftGroupStatusFunded, false},
		{DraftGroupStatusFunded, DraftGroupStatusUnfunded, false},
		{DraftGroupStatusUnfunded, DraftGroupStatusUnfunded, false},
		{"nonexistent", DraftGroupStatusFunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidDraftGroupTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidDraftGroupTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidTransferTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{TransferStatusPending, TransferStatusSent, true},
		{TransferStatusPending, TransferStatusReverted, true},
		{TransferStatusSent, TransferStatusReverted, false},
		{TransferStatusReverted, TransferStatusSent, false},
	}

	for _, tt := range tests {
		if got := IsValidTransferTransition(tt.from, tt.to); got != tt.expected {
			t.Errorf("IsValidTransferTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
		}
	}
}

func TestDraftGroupLifecycle(t *testing.T) {
	g := NewDraftGroup()
	if g.Status() != DraftGroupStatusUnfunded {
		t.Fatalf("new group status %q", g.Status())
	}

	if err := g.AddDraft(0, amount); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDraft(1, amount); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDraft(1, amount); KindOf(err) != KindInvariant {
		t.Errorf("adding the same draft twice: got %v", err)
	}
	assertBalance(t, "total", g.TotalAmount, amount.Mul(decimal.NewFromInt(2)))

	if err := g.AssertCanConvert(); !errors.Is(err, ErrGroupNotFunded) {
		t.Errorf("expected not funded, got %v", err)
	}
	if err := g.Fund("owner", amount); !errors.Is(err, ErrDepositAmountMismatch) {
		t.Errorf("expected amount mismatch, got %v", err)
	}
	if g.Funded {
		t.Fatal("mismatched deposit must not fund the group")
	}

	if err := g.Fund("owner", amount.Mul(decimal.NewFromInt(2))); err != nil {
		t.Fatal(err)
	}
	if !g.Funded || g.PayerID != "owner" {
		t.Fatalf("unexpected group after funding: %+v", g)
	}
	if err := g.Fund("owner", g.TotalAmount); !errors.Is(err, ErrGroupAlreadyFunded) {
		t.Errorf("expected already funded, got %v", err)
	}
	if err := g.AddDraft(2, amount); !errors.Is(err, ErrGroupAlreadyFunded) {
		t.Errorf("expected already funded, got %v", err)
	}

	if err := g.RemoveDraft(0, amount); err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "total after convert", g.TotalAmount, amount)
	if len(g.DraftIndices) != 1 || g.DraftIndices[0] != 1 {
		t.Errorf("unexpected indices %v", g.DraftIndices)
	}
	if err := g.RemoveDraft(0, amount); KindOf(err) != KindInvariant {
		t.Errorf("removing a converted draft: got %v", err)
	}
	if err := g.RemoveDraft(1, amount.Add(decimal.NewFromInt(1))); KindOf(err) != KindInvariant {
		t.Errorf("total must never go negative: got %v", err)
	}
}

func TestDraftIntoLockup(t *testing.T) {
	_, vesting := lockupAndVesting()
	d := &Draft{DraftGroupID: 3, Lockup: *newVestingLockup(PlainVesting(vesting))}
	d.Lockup.TerminationConfig.PayerID = ""

	if err := d.ValidateNew(); err != nil {
		t.Fatalf("expected valid draft: %v", err)
	}

	l := d.IntoLockup("funder")
	if l.TerminationConfig.PayerID != "funder" {
		t.Errorf("payer not propagated: %+v", l.TerminationConfig)
	}
	if d.Lockup.TerminationConfig.PayerID != "" {
		t.Error("draft template must not be modified")
	}

	unlocked := &Draft{Lockup: *NewUnlocked("alice", amount)}
	if l := unlocked.IntoLockup("funder"); l.TerminationConfig != nil {
		t.Error("lockup without termination config must stay without one")
	}
}
