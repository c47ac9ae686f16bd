package models

import "errors"

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindState
	KindValidation
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// LedgerError is a rejected ledger operation. Kind decides how callers react:
// everything except KindInvariant is an ordinary per-call rejection.
type LedgerError struct {
	Kind ErrorKind
	Msg  string
}

func (e *LedgerError) Error() string { return e.Msg }

func newError(kind ErrorKind, msg string) *LedgerError {
	return &LedgerError{Kind: kind, Msg: msg}
}

// KindOf returns the kind of the first LedgerError in err's chain.
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

var (
	ErrLockupNotFound     = newError(KindNotFound, "Lockup not found")
	ErrDraftNotFound      = newError(KindNotFound, "draft not found")
	ErrDraftGroupNotFound = newError(KindNotFound, "draft group not found")
	ErrTransferNotFound   = newError(KindNotFound, "transfer not found")

	ErrNotWhitelisted = newError(KindUnauthorized, "Not in deposit whitelist")
	ErrUnauthorized   = newError(KindUnauthorized, "Unauthorized")
	ErrPayerMismatch  = newError(KindUnauthorized, "payer_id mismatch")

	ErrNoTerminationConfig  = newError(KindState, "No termination config")
	ErrGroupAlreadyFunded   = newError(KindState, "group already funded")
	ErrGroupNotFunded       = newError(KindState, "not funded group")
	ErrTransferNotPending   = newError(KindState, "transfer is not pending")
	ErrTerminationInThePast = newError(KindState, "expected termination_timestamp >= now")
	ErrTransferNotSent      = newError(KindState, "transfer was not sent")
	ErrDepositProcessed     = newError(KindState, "deposit already processed")

	ErrInvalidSchedule          = newError(KindValidation, "invalid schedule")
	ErrScheduleHashMismatch     = newError(KindValidation, "The revealed schedule hash doesn't match")
	ErrIncompatibleSchedule     = newError(KindValidation, "The lockup schedule is ahead of the termination schedule")
	ErrNonZeroClaimedBalance    = newError(KindValidation, "The initial lockup claimed balance should be 0")
	ErrClaimAmountTooBig        = newError(KindValidation, "too big claim amount")
	ErrInvalidAmount            = newError(KindValidation, "invalid amount")
	ErrDepositAmountMismatch    = newError(KindValidation, "The draft group total balance doesn't match the transferred balance")
	ErrUnexpectedDepositMessage = newError(KindValidation, "Expected Lockup or DraftGroupConfirmation as msg")
	ErrInvalidAccount           = newError(KindValidation, "invalid account id")
	ErrInvalidRange             = newError(KindValidation, "invalid index range")
	ErrDuplicateIndex           = newError(KindValidation, "duplicate index")

	ErrInvariant = newError(KindInvariant, "Invariant")
)
