package events

import "context"

// StreamLockup carries every ledger event.
const StreamLockup = "events:lockup"

// Event types
const (
	EventLockupCreated     = "lockup_created"
	EventLockupClaimed     = "lockup_claimed"
	EventLockupTerminated  = "lockup_terminated"
	EventDraftGroupCreated = "draft_group_created"
	EventDraftCreated      = "draft_created"
	EventDraftConverted    = "draft_converted"
	EventDraftGroupFunded  = "draft_group_funded"
	EventRefund            = "refund"
	EventTransferFailed    = "transfer_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Account returns the account the event concerns, if any.
func (e Event) Account() string {
	if v, ok := e.Payload["account_id"].(string); ok {
		return v
	}
	return ""
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
