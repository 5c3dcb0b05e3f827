// Package apikey issues and verifies the bearer credentials used by the
// programmatic API. Secrets are generated once, handed to the creator, and
// only a salted digest plus a short display prefix are ever persisted.
package apikey

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"encloseai/internal/db"
)

const (
	// SecretTag is the fixed format tag every issued secret starts with,
	// so downstream systems can recognize key material at a glance.
	SecretTag = "encl_"

	// PrefixLen is the display prefix length, including the format tag.
	// Short enough that it does not materially assist guessing the rest.
	PrefixLen = 12

	secretBytes = 32
)

var (
	// ErrInvalidKey is the generic verification failure. Unknown and
	// revoked keys return the same error so callers cannot enumerate.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrNotFound covers revocation targets that are missing, already
	// revoked, or owned by someone else; collapsed into one outcome so
	// the existence of other tenants' keys does not leak.
	ErrNotFound = errors.New("api key not found")
)

// ValidationError reports malformed input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Generate produces a new plaintext secret from a cryptographically
// secure random source.
func Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return SecretTag + base64.RawURLEncoding.EncodeToString(b), nil
}

// Prefix returns the fixed-length display prefix of a plaintext secret.
func Prefix(secret string) string {
	if len(secret) <= PrefixLen {
		return secret
	}
	return secret[:PrefixLen]
}

// Hasher computes the stored digest of a secret. The digest is an HMAC
// over the plaintext with a server-side salt, so it is deterministic
// (lookups index on it) but useless to precompute against the known
// secret format without the salt.
type Hasher struct {
	salt []byte
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

func (h *Hasher) Hash(secret string) string {
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Store is the persistence surface the manager needs. Lookup misses are
// reported as gorm.ErrRecordNotFound.
type Store interface {
	Insert(ctx context.Context, key *db.APIKey) error
	GetBySecretHash(ctx context.Context, hash string) (*db.APIKey, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]db.APIKey, error)
	RevokeOwned(ctx context.Context, keyID, ownerID uint, at time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, keyID uint, at time.Time) error
}

// CreatedKey is the result of issuing a key. Secret is the plaintext,
// returned exactly once; it is never persisted or logged.
type CreatedKey struct {
	Key    db.APIKey
	Secret string
}

// Manager implements key issuance, revocation, and verification.
type Manager struct {
	store  Store
	hasher *Hasher
	now    func() time.Time
}

func NewManager(store Store, hasher *Hasher) *Manager {
	return &Manager{store: store, hasher: hasher, now: time.Now}
}

// Create issues a key for ownerID. The plaintext secret in the result is
// the only copy that will ever exist.
func (m *Manager) Create(ctx context.Context, ownerID uint, name string) (*CreatedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	secret, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	key := db.APIKey{
		UserID:        ownerID,
		Name:          name,
		SecretHash:    m.hasher.Hash(secret),
		DisplayPrefix: Prefix(secret),
		Active:        true,
	}
	if err := m.store.Insert(ctx, &key); err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	return &CreatedKey{Key: key, Secret: secret}, nil
}

// Revoke deactivates a key the caller owns. The store performs the
// ownership check and the mutation in one conditional update; a key that
// is missing, foreign, or already revoked reports ErrNotFound.
func (m *Manager) Revoke(ctx context.Context, keyID, ownerID uint) error {
	updated, err := m.store.RevokeOwned(ctx, keyID, ownerID, m.now())
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

// Verify resolves a presented secret to its owner. Lookup is by digest,
// never by prefix (prefixes can collide across owners). Unknown and
// revoked keys both return ErrInvalidKey; storage failures propagate so
// they are not mistaken for bad credentials.
func (m *Manager) Verify(ctx context.Context, secret string) (uint, error) {
	key, err := m.store.GetBySecretHash(ctx, m.hasher.Hash(secret))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidKey
		}
		return 0, fmt.Errorf("look up api key: %w", err)
	}
	if !key.Active {
		return 0, ErrInvalidKey
	}

	// Last-used is telemetry, not a security control; update it off the
	// request path and tolerate lost updates.
	go func(id uint, at time.Time) {
		_ = m.store.TouchLastUsed(context.Background(), id, at)
	}(key.ID, m.now())

	return key.UserID, nil
}

// List returns the caller's keys for display. Secrets are not stored, so
// listings can only ever expose prefixes.
func (m *Manager) List(ctx context.Context, ownerID uint) ([]db.APIKey, error) {
	keys, err := m.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
