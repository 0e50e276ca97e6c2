package webhook

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursepass/coursepass/app/models"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/ledger"
	"github.com/coursepass/coursepass/internal/pkg/order"
	"github.com/coursepass/coursepass/internal/pkg/signature"
)

// Payload field names used by the payform-style gateways.
const (
	signHeaderField   = "Sign"
	signBodyField     = "signature"
	orderIDField      = "order_id"
	orderNumField     = "order_num"
	paymentStatusKey  = "payment_status"
	paymentStatusPaid = "success"
)

// Ledger is the slice of the subscription ledger the processor writes to.
type Ledger interface {
	HasProcessed(ctx context.Context, gateway, marker string) (bool, error)
	Grant(ctx context.Context, marker *models.ProcessedNotification, subjectID int64, resourceID string, durationDays int, now time.Time) (bool, error)
	Acknowledge(ctx context.Context, marker *models.ProcessedNotification) (bool, error)
	Resource(ctx context.Context, resourceID string) (*models.Resource, error)
}

// Processor drives one notification through
// Received -> Parsed -> SignatureChecked -> {Accepted|Rejected} -> Applied.
// It never calls the access gateway itself; a grant is purely a ledger
// mutation and the caller reacts to Outcome.Granted.
type Processor struct {
	cfg    *config.Config
	ledger Ledger
	now    func() time.Time
}

// NewProcessor creates a webhook processor.
func NewProcessor(cfg *config.Config, l Ledger) *Processor {
	return &Processor{cfg: cfg, ledger: l, now: time.Now}
}

// Process runs the state machine for one notification and returns a typed
// outcome. All verification and decoding failures are resolved here; only
// transient ledger failures surface as retryable.
func (p *Processor) Process(ctx context.Context, req Request) Outcome {
	gw := p.cfg.Gateway(req.Gateway)
	if gw == nil || !gw.Enabled {
		// The transport adapter filters these before calling Process; a
		// misrouted call is still a terminal reject.
		return rejected(RejectBadPayload)
	}

	// Received -> Parsed
	payload, fields, err := parseBody(req.ContentType, req.Body)
	if err != nil {
		log.Warnf("[Webhook] %s: unparseable payload: %v", gw.Name, err)
		return rejected(RejectBadPayload)
	}

	// Parsed -> SignatureChecked
	presented := strings.TrimSpace(req.HeaderSignature)
	if presented == "" {
		presented = strings.TrimSpace(fields[signBodyField])
	}
	if presented == "" {
		presented = strings.TrimSpace(fields[signHeaderField])
	}
	if presented == "" {
		return rejected(RejectMissingSignature)
	}
	if !signature.Verify(payload, gw.Secret, presented) {
		// Deliberately no detail: the computed signature never leaves here.
		out := rejected(RejectInvalidSignature)
		out.OrderToken = fields[orderIDField]
		out.PresentedSignature = presented
		return out
	}

	// Accepted -> Applied
	orderToken := fields[orderIDField]
	oid, err := order.Decode(orderToken)
	if err != nil {
		log.Warnf("[Webhook] %s: undecodable order token %q", gw.Name, orderToken)
		return rejected(RejectUnknownOrder)
	}

	marker := &models.ProcessedNotification{
		Gateway:       gw.Name,
		Marker:        dedupMarker(fields),
		OrderToken:    orderToken,
		PaymentStatus: fields[paymentStatusKey],
	}

	processed, err := p.ledger.HasProcessed(ctx, gw.Name, marker.Marker)
	if err != nil {
		return retry(errors.Join(ErrLedgerUnavailable, err))
	}
	if processed {
		return Outcome{Status: StatusApplied, Duplicate: true, Order: oid, PaymentStatus: marker.PaymentStatus}
	}

	if marker.PaymentStatus != paymentStatusPaid {
		// Acknowledged but no access granted.
		applied, err := p.ledger.Acknowledge(ctx, marker)
		if err != nil {
			return retry(errors.Join(ErrLedgerUnavailable, err))
		}
		return Outcome{Status: StatusApplied, Duplicate: !applied, Order: oid, PaymentStatus: marker.PaymentStatus}
	}

	resource, err := p.ledger.Resource(ctx, oid.ResourceID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warnf("[Webhook] %s: order %s references unknown resource", gw.Name, oid)
			return rejected(RejectUnknownOrder)
		}
		return retry(errors.Join(ErrLedgerUnavailable, err))
	}

	applied, err := p.ledger.Grant(ctx, marker, oid.SubjectID, oid.ResourceID, resource.DurationDays, p.now())
	if err != nil {
		return retry(errors.Join(ErrLedgerUnavailable, err))
	}

	return Outcome{
		Status:        StatusApplied,
		Duplicate:     !applied,
		Granted:       applied,
		Order:         oid,
		ChannelID:     resource.ChannelID,
		PaymentStatus: marker.PaymentStatus,
	}
}

// parseBody normalizes the transport body into the payload tree used for
// signing plus a flat view of its top-level leaf fields. The signature
// fields are excluded from the tree; they must not sign themselves.
func parseBody(contentType string, body []byte) (*signature.Node, map[string]string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	if ct == "application/json" {
		node, err := signature.BuildFromJSON(body)
		if err != nil {
			return nil, nil, err
		}
		if node.Kind != signature.KindMap {
			return nil, nil, errors.New("json payload is not an object")
		}
		// Capture the flat view first so a body-carried signature is still
		// readable, then drop the signature fields from the signed tree.
		flat := topLevelLeaves(node)
		delete(node.Fields, signHeaderField)
		delete(node.Fields, signBodyField)
		return node, flat, nil
	}

	// Default: form- or query-encoded with PHP bracket nesting.
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, nil, err
	}
	flat := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	node := signature.BuildFromForm(flat, signHeaderField, signBodyField)
	return node, flat, nil
}

func topLevelLeaves(node *signature.Node) map[string]string {
	flat := make(map[string]string, len(node.Fields))
	for k, child := range node.Fields {
		if child.Kind == signature.KindLeaf {
			flat[k] = child.Value
		}
	}
	return flat
}

// dedupMarker picks the idempotency key for a delivery: the
// gateway-assigned number when present, the merchant order token otherwise.
func dedupMarker(fields map[string]string) string {
	if v := strings.TrimSpace(fields[orderNumField]); v != "" {
		return v
	}
	return strings.TrimSpace(fields[orderIDField])
}
