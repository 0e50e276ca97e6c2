package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coursepass/coursepass/app/models"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/ledger"
	"github.com/coursepass/coursepass/internal/pkg/metrics"
)

// Gateway is the external membership-management collaborator. Revoke must
// be idempotent: removing a subject who is already gone is a success.
type Gateway interface {
	Revoke(ctx context.Context, subjectID int64, channelID string) error
}

// Ledger is the slice of the subscription ledger the reconciler reads and
// transitions.
type Ledger interface {
	ListExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Subscription, error)
	MarkRevoked(ctx context.Context, subjectID int64, resourceID string, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, subjectID int64, resourceID string, now time.Time) (bool, error)
	Resource(ctx context.Context, resourceID string) (*models.Resource, error)
}

// Reporter receives the summary of a finished sweep.
type Reporter interface {
	Report(ctx context.Context, s Summary)
}

// Summary is the outcome of one reconciliation sweep.
type Summary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Revoked   int           `json:"revoked"`
	Failed    int           `json:"failed"`
	// Expired counts records with no channel to revoke from; they are
	// transitioned directly so they stop reappearing in sweeps.
	Expired int `json:"expired"`
}

// Reconciler periodically aligns granted access with expiry truth: it
// revokes channel access for expired grants and reports the result.
type Reconciler struct {
	cfg      *config.Config
	ledger   Ledger
	gateway  Gateway
	reporter Reporter
}

// New creates a reconciler. reporter may be nil.
func New(cfg *config.Config, l Ledger, g Gateway, reporter Reporter) *Reconciler {
	return &Reconciler{cfg: cfg, ledger: l, gateway: g, reporter: reporter}
}

// RunSweep processes every active record whose expiry has passed. One
// failed revocation never aborts the sweep: the record stays active and is
// retried on the next run. Revocations fan out with bounded concurrency and
// a mandatory per-call timeout; a timed-out call counts as failed, never as
// revoked.
func (r *Reconciler) RunSweep(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString(), StartedAt: now}
	log.Infof("[Reconciler] Sweep %s starting", summary.RunID)

	var mu sync.Mutex
	var cursor uint
	for {
		batch, err := r.ledger.ListExpired(ctx, now, cursor, r.cfg.SweepBatchSize)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		if len(batch) == 0 {
			break
		}
		cursor = batch[len(batch)-1].ID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.SweepConcurrency)
		for _, sub := range batch {
			sub := sub
			mu.Lock()
			summary.Scanned++
			mu.Unlock()

			g.Go(func() error {
				result := r.processRecord(gctx, &sub, now)
				mu.Lock()
				switch result {
				case recordRevoked:
					summary.Revoked++
				case recordExpired:
					summary.Expired++
				case recordFailed:
					summary.Failed++
				}
				mu.Unlock()
				metrics.SweepRecords.WithLabelValues(string(result)).Inc()
				// Per-record failures are recorded, not propagated; the
				// sweep always runs to completion.
				return nil
			})
		}
		_ = g.Wait()

		if len(batch) < r.cfg.SweepBatchSize {
			break
		}
	}

	summary.Duration = time.Since(start)
	metrics.SweepRuns.Inc()
	metrics.SweepDuration.Observe(summary.Duration.Seconds())
	log.Infof("[Reconciler] Sweep %s done: scanned=%d revoked=%d failed=%d expired=%d in %s",
		summary.RunID, summary.Scanned, summary.Revoked, summary.Failed, summary.Expired, summary.Duration)

	if r.reporter != nil {
		r.reporter.Report(ctx, summary)
	}
	return summary, nil
}

type recordResult string

const (
	recordRevoked recordResult = "revoked"
	recordExpired recordResult = "expired"
	recordFailed  recordResult = "failed"
	recordSkipped recordResult = "skipped"
)

func (r *Reconciler) processRecord(ctx context.Context, sub *models.Subscription, now time.Time) recordResult {
	resource, err := r.ledger.Resource(ctx, sub.ResourceID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		// Transient lookup failure. The record stays active so the next
		// sweep retries it; only a definitive not-found may expire it.
		log.Warnf("[Reconciler] Resource lookup failed for %d/%s: %v", sub.SubjectID, sub.ResourceID, err)
		return recordFailed
	}
	if err != nil || resource.ChannelID == "" {
		// Unknown resource or nothing to revoke from. Transition the record
		// so it does not reappear on every sweep.
		if marked, merr := r.ledger.MarkExpired(ctx, sub.SubjectID, sub.ResourceID, now); merr != nil || !marked {
			log.Warnf("[Reconciler] Could not mark %d/%s expired: %v", sub.SubjectID, sub.ResourceID, merr)
			return recordFailed
		}
		return recordExpired
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.RevokeTimeout)
	defer cancel()
	if err := r.gateway.Revoke(callCtx, sub.SubjectID, resource.ChannelID); err != nil {
		// Record stays active and is a candidate for the next sweep.
		log.Warnf("[Reconciler] Revoke failed for %d in %s: %v", sub.SubjectID, resource.ChannelID, err)
		return recordFailed
	}

	marked, err := r.ledger.MarkRevoked(ctx, sub.SubjectID, sub.ResourceID, now)
	if err != nil {
		log.Errorf("[Reconciler] Revoked %d in %s but could not persist status: %v", sub.SubjectID, resource.ChannelID, err)
		return recordFailed
	}
	if !marked {
		// A fresh payment re-activated the pair mid-sweep; the new grant wins.
		log.Infof("[Reconciler] %d/%s re-activated during sweep, leaving grant in place", sub.SubjectID, sub.ResourceID)
		return recordSkipped
	}
	return recordRevoked
}
