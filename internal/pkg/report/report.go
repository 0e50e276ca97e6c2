package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursepass/coursepass/internal/pkg/cache"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/reconciler"
)

// LastSummaryKey is the cache key the latest sweep summary is stored under.
const LastSummaryKey = "sweep:last_summary"

// Messenger delivers plain-text admin notifications.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// AdminReporter pushes sweep summaries to the configured admin chats and
// caches the latest one for the admin endpoint. A failed notification is
// logged, never fatal.
type AdminReporter struct {
	cfg       *config.Config
	messenger Messenger
}

// NewAdminReporter creates a reporter for the configured admin chat ids.
func NewAdminReporter(cfg *config.Config, m Messenger) *AdminReporter {
	return &AdminReporter{cfg: cfg, messenger: m}
}

// Report implements reconciler.Reporter.
func (r *AdminReporter) Report(ctx context.Context, s reconciler.Summary) {
	if data, err := json.Marshal(s); err == nil {
		if err := cache.Set(LastSummaryKey, data, 7*24*time.Hour); err != nil {
			log.Warnf("[Report] Could not cache sweep summary: %v", err)
		}
	}

	if s.Scanned == 0 {
		// Nothing happened; no reason to page anyone.
		return
	}

	text := fmt.Sprintf(
		"Access sweep %s finished.\nScanned: %d\nRevoked: %d\nFailed: %d\nExpired (no channel): %d\nDuration: %s",
		s.RunID, s.Scanned, s.Revoked, s.Failed, s.Expired, s.Duration.Round(time.Millisecond),
	)
	for _, chatID := range r.cfg.AdminChatIDs {
		if err := r.messenger.SendMessage(ctx, chatID, text); err != nil {
			log.Warnf("[Report] Could not notify admin %d: %v", chatID, err)
		}
	}
}

// NotifyInvalidSignature alerts admins about a delivery that failed
// signature verification. Only the presented signature is shown, truncated;
// the computed one never leaves the verifier.
func (r *AdminReporter) NotifyInvalidSignature(ctx context.Context, gateway, orderToken, presented string) {
	if len(presented) > 20 {
		presented = presented[:20] + "..."
	}
	text := fmt.Sprintf(
		"Webhook with invalid signature on %s.\nOrder: %s\nPresented sign: %s\nThe notification was not processed.",
		gateway, orderToken, presented,
	)
	for _, chatID := range r.cfg.AdminChatIDs {
		if err := r.messenger.SendMessage(ctx, chatID, text); err != nil {
			log.Warnf("[Report] Could not notify admin %d: %v", chatID, err)
		}
	}
}
