package webhook

import (
	"errors"

	"github.com/coursepass/coursepass/internal/pkg/order"
)

// Status is the terminal state of one notification.
type Status string

const (
	// StatusApplied means the notification was fully processed, including
	// the idempotent-replay case where an earlier delivery already applied it.
	StatusApplied Status = "applied"
	// StatusRejected is terminal and non-retryable.
	StatusRejected Status = "rejected"
	// StatusRetry means a transient ledger failure; the gateway should
	// redeliver and the notification was not marked processed.
	StatusRetry Status = "retry"
)

// RejectReason distinguishes the non-retryable outcomes so the transport
// adapter can choose an HTTP status. Reasons are never conflated.
type RejectReason string

const (
	RejectBadPayload       RejectReason = "bad_payload"
	RejectMissingSignature RejectReason = "missing_signature"
	RejectInvalidSignature RejectReason = "invalid_signature"
	RejectUnknownOrder     RejectReason = "unknown_order"
)

// ErrLedgerUnavailable classifies transient storage failures.
var ErrLedgerUnavailable = errors.New("subscription ledger unavailable")

// Request is one inbound notification as received from the transport.
type Request struct {
	Gateway     string
	ContentType string
	Body        []byte
	// Signature presented in the transport header, if any. A signature
	// carried in the body is picked up during parsing.
	HeaderSignature string
}

// Outcome is the typed result of processing one notification.
type Outcome struct {
	Status Status
	Reason RejectReason
	// Duplicate is set on idempotent replays: the delivery is acknowledged
	// but caused no ledger mutation.
	Duplicate bool
	// Granted is set when this delivery created or extended access, so the
	// caller may trigger the (out-of-band) channel invite.
	Granted       bool
	Order         order.ID
	ChannelID     string
	PaymentStatus string
	// OrderToken and PresentedSignature are filled on signature rejects so
	// the transport adapter can raise an operator alert. The computed
	// signature is never exposed.
	OrderToken         string
	PresentedSignature string
	// Err carries the underlying error for StatusRetry outcomes. It is for
	// logs only and is never echoed to the gateway.
	Err error
}

func rejected(reason RejectReason) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

func retry(err error) Outcome {
	return Outcome{Status: StatusRetry, Err: err}
}
