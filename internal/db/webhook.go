package db

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEvent stores a provider webhook payload with deduplication
// metadata. Replayed deliveries of the same provider event id are
// recorded once.
type WebhookEvent struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	Provider        string `gorm:"size:20;not null;uniqueIndex:idx_webhook_provider_event,priority:1"`
	ProviderEventID string `gorm:"size:191;not null;uniqueIndex:idx_webhook_provider_event,priority:2"`

	EventType string `gorm:"size:100;not null;index"`

	// UserID is the merchant the event was attributed to via their linked
	// Stripe account. Zero when the event could not be attributed.
	UserID uint `gorm:"index"`

	// Payload holds the raw event object so the dashboard can show it
	// without schema changes per event type.
	Payload datatypes.JSONMap `gorm:"type:json"`

	ProcessedAt     *time.Time
	ProcessingError string `gorm:"type:text"`
}

// WebhookStore provides the persistence primitives for webhook capture.
type WebhookStore struct {
	db *gorm.DB
}

func NewWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{db: db}
}

// Insert records an event, skipping deliveries already captured under the
// same (provider, event id). Returns whether a new row was written.
// Dedup rides on the unique index via ON CONFLICT DO NOTHING, so two
// concurrent deliveries of the same event cannot race each other into a
// constraint violation.
func (s *WebhookStore) Insert(ctx context.Context, ev *WebhookEvent) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *WebhookStore) ListByOwner(ctx context.Context, ownerID uint, limit int) ([]WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []WebhookEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (s *WebhookStore) MarkProcessed(ctx context.Context, id uint, at time.Time, processingErr string) error {
	return s.db.WithContext(ctx).Model(&WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed_at": at, "processing_error": processingErr}).Error
}
