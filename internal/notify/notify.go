// Package notify models outbound notifications as explicit asynchronous
// tasks. Delivery is best-effort and failure-isolated: a failed delivery is
// logged and counted, never propagated to the operation that triggered it.
package notify

import (
	"context"

	id "propbridge/pkg/domain"
)

// Kind labels a notification template.
type Kind string

const (
	// KindMatchFound tells a buyer a listing matched their requirement.
	KindMatchFound Kind = "match_found"
	// KindListingInterest tells a seller there is buyer activity nearby.
	// The payload never carries the buyer's identity.
	KindListingInterest Kind = "listing_interest"
	// KindAgentReview asks agents to triage a new match or interest.
	KindAgentReview Kind = "agent_review"
	// KindConnectionUpdate tells a party their mediation state moved.
	KindConnectionUpdate Kind = "connection_update"
)

// Notification is one delivery to one recipient.
type Notification struct {
	Recipient id.UserID
	Kind      Kind
	Payload   map[string]string
}

// Sender is the external delivery collaborator (push/SMS/email fan-out
// happens behind it).
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher accepts notifications without blocking the caller.
type Dispatcher interface {
	// Dispatch enqueues a delivery. It never returns an error; delivery
	// problems surface in logs and metrics only.
	Dispatch(ctx context.Context, n Notification)
}
