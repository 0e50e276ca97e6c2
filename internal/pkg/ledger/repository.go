package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursepass/coursepass/app/models"
)

// ErrNotFound is returned when no subscription exists for a pair.
var ErrNotFound = errors.New("subscription not found")

// Repository provides the DB operations behind the subscription ledger.
type Repository interface {
	GetSubscription(ctx context.Context, subjectID int64, resourceID string) (*models.Subscription, error)
	// ApplyNotification records the dedup marker and, when sub is non-nil,
	// upserts the subscription in the same transaction. It returns false
	// without touching the subscription when the marker already exists.
	ApplyNotification(ctx context.Context, marker *models.ProcessedNotification, sub *models.Subscription) (bool, error)
	HasProcessed(ctx context.Context, gateway, marker string) (bool, error)
	ListExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Subscription, error)
	// MarkStatusIfExpired transitions an active, past-expiry record to the
	// given status. The guard keeps a concurrent fresh payment authoritative:
	// a record that was re-activated or extended in the meantime is left alone.
	MarkStatusIfExpired(ctx context.Context, subjectID int64, resourceID, status string, now time.Time) (bool, error)
	GetResource(ctx context.Context, resourceID string) (*models.Resource, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscription(ctx context.Context, subjectID int64, resourceID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND resource_id = ?", subjectID, resourceID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ApplyNotification(ctx context.Context, marker *models.ProcessedNotification, sub *models.Subscription) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "gateway"},
				{Name: "marker"},
			},
			DoNothing: true,
		}).Create(marker)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0
		if !applied || sub == nil {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "subject_id"},
				{Name: "resource_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"granted_at",
				"expiry_at",
				"status",
				"updated_at",
			}),
		}).Create(sub).Error
	})
	return applied, err
}

func (r *gormRepository) HasProcessed(ctx context.Context, gateway, marker string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedNotification{}).
		Where("gateway = ? AND marker = ?", gateway, marker).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiry_at IS NOT NULL AND expiry_at <= ? AND id > ?",
			models.SubscriptionStatusActive, now, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) MarkStatusIfExpired(ctx context.Context, subjectID int64, resourceID, status string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("subject_id = ? AND resource_id = ? AND status = ? AND expiry_at IS NOT NULL AND expiry_at <= ?",
			subjectID, resourceID, models.SubscriptionStatusActive, now).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) GetResource(ctx context.Context, resourceID string) (*models.Resource, error) {
	var resource models.Resource
	err := r.db.WithContext(ctx).Where("resource_id = ?", resourceID).First(&resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resource, nil
}
