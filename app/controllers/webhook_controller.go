package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/metrics"
	"github.com/coursepass/coursepass/internal/pkg/webhook"
)

// signatureHeader is the transport header payform-style gateways sign with.
const signatureHeader = "Sign"

// Inviter creates channel invites and notifies the buyer. Both calls happen
// after the grant is committed; a failure here never un-applies anything.
type Inviter interface {
	Invite(ctx context.Context, userID int64, channelID string) (string, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// SignatureAlerter raises an operator alert for a delivery that failed
// verification.
type SignatureAlerter interface {
	NotifyInvalidSignature(ctx context.Context, gateway, orderToken, presented string)
}

// WebhookController terminates gateway notifications: it maps HTTP to the
// processor's typed outcomes and triggers the out-of-band follow-ups.
type WebhookController struct {
	cfg       *config.Config
	processor *webhook.Processor
	inviter   Inviter
	alerter   SignatureAlerter
}

// NewWebhookController wires the webhook endpoint. inviter and alerter may
// be nil; the corresponding follow-ups are then skipped.
func NewWebhookController(cfg *config.Config, p *webhook.Processor, inviter Inviter, alerter SignatureAlerter) *WebhookController {
	return &WebhookController{cfg: cfg, processor: p, inviter: inviter, alerter: alerter}
}

// HandleNotification processes POST /webhook/:gateway.
//
// Status contract: 200 only when the notification reached a terminal applied
// state (including idempotent replays), 4xx for terminal rejects the gateway
// must not redeliver, 500 when redelivery is wanted.
func (wc *WebhookController) HandleNotification(c *fiber.Ctx) error {
	gatewayName := c.Params("gateway")
	gw := wc.cfg.Gateway(gatewayName)
	if gw == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown gateway"})
	}
	if !gw.Enabled {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "gateway disabled"})
	}

	start := time.Now()
	outcome := wc.processor.Process(c.Context(), webhook.Request{
		Gateway:         gw.Name,
		ContentType:     c.Get(fiber.HeaderContentType),
		Body:            c.Body(),
		HeaderSignature: c.Get(signatureHeader),
	})
	metrics.WebhookDuration.WithLabelValues(gw.Name).Observe(time.Since(start).Seconds())
	metrics.WebhookOutcomes.WithLabelValues(gw.Name, outcomeLabel(outcome)).Inc()

	switch outcome.Status {
	case webhook.StatusApplied:
		if outcome.Granted {
			go wc.inviteAfterGrant(gw.Name, outcome)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "success",
			"duplicate": outcome.Duplicate,
		})
	case webhook.StatusRetry:
		log.Errorf("[Webhook] %s: transient failure, asking for redelivery: %v", gw.Name, outcome.Err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "temporary failure, please retry"})
	default:
		return wc.reject(c, gw.Name, outcome)
	}
}

func (wc *WebhookController) reject(c *fiber.Ctx, gateway string, outcome webhook.Outcome) error {
	switch outcome.Reason {
	case webhook.RejectInvalidSignature:
		if wc.alerter != nil {
			go wc.alerter.NotifyInvalidSignature(context.Background(), gateway, outcome.OrderToken, outcome.PresentedSignature)
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid signature"})
	case webhook.RejectMissingSignature:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing signature"})
	case webhook.RejectUnknownOrder:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown order"})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}
}

// inviteAfterGrant creates a fresh single-use invite link and sends it to
// the buyer. Runs detached from the request; the gateway already got its 200.
func (wc *WebhookController) inviteAfterGrant(gateway string, outcome webhook.Outcome) {
	if wc.inviter == nil || outcome.ChannelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	link, err := wc.inviter.Invite(ctx, outcome.Order.SubjectID, outcome.ChannelID)
	if err != nil {
		log.Warnf("[Webhook] %s: invite link for %s failed: %v", gateway, outcome.Order, err)
		return
	}
	text := fmt.Sprintf("Your payment was received. Here is your access link: %s", link)
	if err := wc.inviter.SendMessage(ctx, outcome.Order.SubjectID, text); err != nil {
		log.Warnf("[Webhook] %s: could not deliver invite to %d: %v", gateway, outcome.Order.SubjectID, err)
	}
}

func outcomeLabel(o webhook.Outcome) string {
	switch o.Status {
	case webhook.StatusApplied:
		if o.Duplicate {
			return "duplicate"
		}
		return "applied"
	case webhook.StatusRetry:
		return "retry"
	default:
		return string(o.Reason)
	}
}
