package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/coursepass/coursepass/app/models"
)

// Service is the authoritative subscription ledger. The webhook processor
// and the access reconciler are its only writers.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Get returns the subscription for a pair, or ErrNotFound.
func (s *Service) Get(ctx context.Context, subjectID int64, resourceID string) (*models.Subscription, error) {
	return s.repo.GetSubscription(ctx, subjectID, resourceID)
}

// HasProcessed reports whether a notification marker was already applied.
func (s *Service) HasProcessed(ctx context.Context, gateway, marker string) (bool, error) {
	return s.repo.HasProcessed(ctx, gateway, marker)
}

// Grant upserts the subscription for a paid order and records the dedup
// marker in the same transaction. It returns false when the marker was
// already applied (idempotent replay, no second mutation).
//
// Repeat-purchase semantics: the new expiry extends from whichever is later,
// now or the current expiry, by durationDays. A non-expiring grant is never
// shortened, not even by a bounded repurchase; durationDays <= 0 grants
// non-expiring access.
func (s *Service) Grant(ctx context.Context, marker *models.ProcessedNotification, subjectID int64, resourceID string, durationDays int, now time.Time) (bool, error) {
	existing, err := s.repo.GetSubscription(ctx, subjectID, resourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	sub := &models.Subscription{
		SubjectID:  subjectID,
		ResourceID: resourceID,
		GrantedAt:  now,
		ExpiryAt:   nextExpiry(existing, durationDays, now),
		Status:     models.SubscriptionStatusActive,
	}
	return s.repo.ApplyNotification(ctx, marker, sub)
}

// Acknowledge records the dedup marker without mutating any subscription.
// Used for non-success payment statuses, which are acknowledged but grant
// nothing.
func (s *Service) Acknowledge(ctx context.Context, marker *models.ProcessedNotification) (bool, error) {
	return s.repo.ApplyNotification(ctx, marker, nil)
}

// ListExpired returns up to limit active records whose expiry has passed,
// ordered by id, starting after afterID. The cursor keeps the read stable
// and paginable so a sweep never holds a long-lived lock.
func (s *Service) ListExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Subscription, error) {
	return s.repo.ListExpired(ctx, now, afterID, limit)
}

// MarkRevoked transitions an active, past-expiry record to revoked. Returns
// false when the record was re-activated in the meantime (a fresh payment
// always wins over a stale revoke-in-flight).
func (s *Service) MarkRevoked(ctx context.Context, subjectID int64, resourceID string, now time.Time) (bool, error) {
	return s.repo.MarkStatusIfExpired(ctx, subjectID, resourceID, models.SubscriptionStatusRevoked, now)
}

// MarkExpired transitions an active, past-expiry record to expired. Used
// when there is no channel to revoke from, so the record should not keep
// reappearing in sweeps.
func (s *Service) MarkExpired(ctx context.Context, subjectID int64, resourceID string, now time.Time) (bool, error) {
	return s.repo.MarkStatusIfExpired(ctx, subjectID, resourceID, models.SubscriptionStatusExpired, now)
}

// Resource resolves the catalog entry for a resource id, or ErrNotFound.
func (s *Service) Resource(ctx context.Context, resourceID string) (*models.Resource, error) {
	return s.repo.GetResource(ctx, resourceID)
}

func nextExpiry(existing *models.Subscription, durationDays int, now time.Time) *time.Time {
	if durationDays <= 0 {
		return nil
	}
	// An established non-expiring grant stays non-expiring.
	if existing != nil && existing.Status == models.SubscriptionStatusActive && existing.IsPermanent() {
		return nil
	}

	base := now
	if existing != nil && existing.Status == models.SubscriptionStatusActive &&
		existing.ExpiryAt != nil && existing.ExpiryAt.After(now) {
		base = *existing.ExpiryAt
	}
	expiry := base.Add(time.Duration(durationDays) * 24 * time.Hour)
	return &expiry
}
