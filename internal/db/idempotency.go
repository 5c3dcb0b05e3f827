package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// IdempotencyRecord maps a client-supplied Idempotency-Key to the payment
// link its first submission created, so a duplicate submission replays
// the original result instead of creating a second link.
type IdempotencyRecord struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	// Keys are scoped per owner; two merchants may reuse the same value.
	UserID uint   `gorm:"uniqueIndex:idx_idempotency_owner_key,priority:1;not null"`
	Key    string `gorm:"uniqueIndex:idx_idempotency_owner_key,priority:2;size:128;not null"`

	// RequestHash is a sha256 digest of the normalized request payload.
	// A replay with a different hash is a conflict, not a replay.
	RequestHash string `gorm:"size:64;not null"`

	// LinkID is the payment link the first submission created.
	LinkID string `gorm:"size:36;not null"`

	// ExpiresAt bounds how long replays are honored; the retention
	// worker purges expired rows.
	ExpiresAt time.Time `gorm:"index;not null"`
}

// IdempotencyStore provides lookup and reservation of idempotency keys.
type IdempotencyStore struct {
	db *gorm.DB
}

func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Get returns the live record for (owner, key), or gorm.ErrRecordNotFound
// when none exists or the record has expired.
func (s *IdempotencyStore) Get(ctx context.Context, ownerID uint, key string, now time.Time) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND key = ? AND expires_at > ?", ownerID, key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, rec *IdempotencyRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}
