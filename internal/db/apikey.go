package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// APIKey represents a bearer credential for the programmatic API.
// Only a salted digest of the secret is stored; the plaintext exists
// once, in the create response, and is never retrievable again.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the merchant who owns it.
	UserID uint `gorm:"index;not null"`

	// Name is a user-friendly identifier for this key (e.g. "payments-api").
	Name string `gorm:"size:128;not null"`

	// SecretHash is the salted HMAC-SHA256 digest of the full secret,
	// hex encoded. Lookups go through this column, never the prefix.
	SecretHash string `gorm:"uniqueIndex;size:64;not null"`

	// DisplayPrefix is the first few characters of the plaintext secret,
	// safe to show in key listings (e.g. "encl_ab12cde").
	DisplayPrefix string `gorm:"size:16;not null"`

	// Active indicates whether this key is currently enabled. Revocation
	// is terminal; rows are never deleted.
	Active bool `gorm:"default:true"`

	RevokedAt  *time.Time
	LastUsedAt *time.Time

	// User is the owner of this API key.
	User User `gorm:"foreignKey:UserID"`
}

// KeyStore provides the persistence primitives the key manager needs.
type KeyStore struct {
	db *gorm.DB
}

func NewKeyStore(db *gorm.DB) *KeyStore {
	return &KeyStore{db: db}
}

func (s *KeyStore) Insert(ctx context.Context, key *APIKey) error {
	return s.db.WithContext(ctx).Create(key).Error
}

// GetBySecretHash returns gorm.ErrRecordNotFound on a miss, including
// revoked keys only through their Active flag (the row is still returned).
func (s *KeyStore) GetBySecretHash(ctx context.Context, hash string) (*APIKey, error) {
	var key APIKey
	if err := s.db.WithContext(ctx).Where("secret_hash = ?", hash).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *KeyStore) ListByOwner(ctx context.Context, ownerID uint) ([]APIKey, error) {
	var keys []APIKey
	err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

// RevokeOwned flips a key to revoked with a single conditional UPDATE
// scoped by id, owner, and not-yet-revoked, so the ownership check and
// the mutation cannot race. Returns whether a row was updated.
func (s *KeyStore) RevokeOwned(ctx context.Context, keyID, ownerID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", keyID, ownerID).
		Updates(map[string]interface{}{"active": false, "revoked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TouchLastUsed records a successful verification. Best-effort telemetry;
// lost updates under concurrent verifies are acceptable.
func (s *KeyStore) TouchLastUsed(ctx context.Context, keyID uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", keyID).Update("last_used_at", at).Error
}
