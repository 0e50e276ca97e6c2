package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepass/coursepass/app/models"
)

type fakeRepo struct {
	existing    *models.Subscription
	appliedSub  *models.Subscription
	appliedMark *models.ProcessedNotification
	applyResult bool
	marked      []string
	markResult  bool
}

func (f *fakeRepo) GetSubscription(_ context.Context, _ int64, _ string) (*models.Subscription, error) {
	if f.existing == nil {
		return nil, ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeRepo) ApplyNotification(_ context.Context, marker *models.ProcessedNotification, sub *models.Subscription) (bool, error) {
	f.appliedMark = marker
	f.appliedSub = sub
	return f.applyResult, nil
}

func (f *fakeRepo) HasProcessed(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (f *fakeRepo) ListExpired(_ context.Context, _ time.Time, _ uint, _ int) ([]models.Subscription, error) {
	return nil, nil
}

func (f *fakeRepo) MarkStatusIfExpired(_ context.Context, _ int64, _, status string, _ time.Time) (bool, error) {
	f.marked = append(f.marked, status)
	return f.markResult, nil
}

func (f *fakeRepo) GetResource(_ context.Context, _ string) (*models.Resource, error) {
	return nil, ErrNotFound
}

func marker() *models.ProcessedNotification {
	return &models.ProcessedNotification{Gateway: "payform", Marker: "pf-1", OrderToken: "42:course-a"}
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGrantFreshSubscription(t *testing.T) {
	repo := &fakeRepo{applyResult: true}
	svc := NewService(repo)

	applied, err := svc.Grant(context.Background(), marker(), 42, "course-a", 30, now)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NotNil(t, repo.appliedSub)
	assert.Equal(t, models.SubscriptionStatusActive, repo.appliedSub.Status)
	require.NotNil(t, repo.appliedSub.ExpiryAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *repo.appliedSub.ExpiryAt)
}

func TestGrantExtendsFromCurrentExpiry(t *testing.T) {
	current := now.Add(10 * 24 * time.Hour)
	repo := &fakeRepo{
		applyResult: true,
		existing: &models.Subscription{
			Status:   models.SubscriptionStatusActive,
			ExpiryAt: &current,
		},
	}
	svc := NewService(repo)

	_, err := svc.Grant(context.Background(), marker(), 42, "course-a", 30, now)
	require.NoError(t, err)

	require.NotNil(t, repo.appliedSub.ExpiryAt)
	assert.Equal(t, current.Add(30*24*time.Hour), *repo.appliedSub.ExpiryAt)
}

func TestGrantAfterLapseExtendsFromNow(t *testing.T) {
	lapsed := now.Add(-5 * 24 * time.Hour)
	repo := &fakeRepo{
		applyResult: true,
		existing: &models.Subscription{
			Status:   models.SubscriptionStatusActive,
			ExpiryAt: &lapsed,
		},
	}
	svc := NewService(repo)

	_, err := svc.Grant(context.Background(), marker(), 42, "course-a", 30, now)
	require.NoError(t, err)

	require.NotNil(t, repo.appliedSub.ExpiryAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *repo.appliedSub.ExpiryAt)
}

func TestGrantNeverShortensPermanentAccess(t *testing.T) {
	repo := &fakeRepo{
		applyResult: true,
		existing: &models.Subscription{
			Status:   models.SubscriptionStatusActive,
			ExpiryAt: nil,
		},
	}
	svc := NewService(repo)

	_, err := svc.Grant(context.Background(), marker(), 42, "course-a", 30, now)
	require.NoError(t, err)

	assert.Nil(t, repo.appliedSub.ExpiryAt)
}

func TestGrantZeroDurationIsPermanent(t *testing.T) {
	repo := &fakeRepo{applyResult: true}
	svc := NewService(repo)

	_, err := svc.Grant(context.Background(), marker(), 42, "course-a", 0, now)
	require.NoError(t, err)

	assert.Nil(t, repo.appliedSub.ExpiryAt)
}

func TestGrantIgnoresRevokedHistory(t *testing.T) {
	future := now.Add(90 * 24 * time.Hour)
	repo := &fakeRepo{
		applyResult: true,
		existing: &models.Subscription{
			Status:   models.SubscriptionStatusRevoked,
			ExpiryAt: &future,
		},
	}
	svc := NewService(repo)

	_, err := svc.Grant(context.Background(), marker(), 42, "course-a", 30, now)
	require.NoError(t, err)

	require.NotNil(t, repo.appliedSub.ExpiryAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *repo.appliedSub.ExpiryAt)
}

func TestAcknowledgeRecordsMarkerWithoutGrant(t *testing.T) {
	repo := &fakeRepo{applyResult: true}
	svc := NewService(repo)

	applied, err := svc.Acknowledge(context.Background(), marker())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Nil(t, repo.appliedSub)
	assert.NotNil(t, repo.appliedMark)
}

func TestMarkTransitionsUseGuardedStatuses(t *testing.T) {
	repo := &fakeRepo{markResult: true}
	svc := NewService(repo)

	ok, err := svc.MarkRevoked(context.Background(), 42, "course-a", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.MarkExpired(context.Background(), 42, "course-a", now)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{models.SubscriptionStatusRevoked, models.SubscriptionStatusExpired}, repo.marked)
}
