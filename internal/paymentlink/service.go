// Package paymentlink validates merchant input and produces durable,
// shareable payment links. The actual money movement is delegated to the
// checkout provider; this package owns the validation and persistence
// envelope around it.
package paymentlink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"encloseai/internal/checkout"
	"encloseai/internal/db"
)

var (
	// ErrNotFound is returned when a link id does not resolve.
	ErrNotFound = errors.New("payment link not found")

	// ErrIdempotencyConflict is returned when an Idempotency-Key is
	// replayed with a different payload than its first submission.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different payload")
)

// ValidationError reports malformed input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// CreateInput is the merchant-supplied request body for link creation.
type CreateInput struct {
	ProductName string  `json:"product_name"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// Store is the link persistence surface. Lookup misses are reported as
// gorm.ErrRecordNotFound.
type Store interface {
	Insert(ctx context.Context, link *db.PaymentLink) error
	GetByID(ctx context.Context, id string) (*db.PaymentLink, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]db.PaymentLink, error)
}

// IdempotencyStore records which link a given Idempotency-Key produced.
type IdempotencyStore interface {
	Get(ctx context.Context, ownerID uint, key string, now time.Time) (*db.IdempotencyRecord, error)
	Put(ctx context.Context, rec *db.IdempotencyRecord) error
}

// AccountStore resolves a merchant's linked Stripe account for the
// checkout provider.
type AccountStore interface {
	GetStripeAccountID(ctx context.Context, userID uint) (string, error)
}

// Service implements payment link creation, listing, and public resolution.
type Service struct {
	links       Store
	idempotency IdempotencyStore
	accounts    AccountStore
	provider    checkout.Provider

	baseURL string
	idemTTL time.Duration
	now     func() time.Time
	newID   func() string
}

func NewService(links Store, idempotency IdempotencyStore, accounts AccountStore, provider checkout.Provider, baseURL string) *Service {
	return &Service{
		links:       links,
		idempotency: idempotency,
		accounts:    accounts,
		provider:    provider,
		baseURL:     strings.TrimRight(baseURL, "/"),
		idemTTL:     24 * time.Hour,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Create validates input and persists exactly one link. Validation happens
// before any write; invalid input persists nothing.
//
// Without an idempotency key the operation is deliberately non-idempotent:
// identical calls create distinct links. When idemKey is non-empty, a
// replay with an identical payload returns the original link, and a replay
// with a different payload fails with ErrIdempotencyConflict.
func (s *Service) Create(ctx context.Context, ownerID uint, in CreateInput, idemKey string) (*db.PaymentLink, error) {
	norm, err := validate(in)
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		reqHash := requestHash(ownerID, norm)
		existing, err := s.idempotency.Get(ctx, ownerID, idemKey, s.now())
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("look up idempotency key: %w", err)
		}
		if existing != nil {
			if existing.RequestHash != reqHash {
				return nil, ErrIdempotencyConflict
			}
			link, err := s.links.GetByID(ctx, existing.LinkID)
			if err == nil {
				return link, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("load replayed payment link: %w", err)
			}
			// The reservation exists but the first attempt died before its
			// link insert landed. Finish the create under the reserved id
			// so the retry heals instead of failing forever.
			return s.insert(ctx, ownerID, norm, existing.LinkID)
		}

		id := s.newID()
		rec := &db.IdempotencyRecord{
			UserID:      ownerID,
			Key:         idemKey,
			RequestHash: reqHash,
			LinkID:      id,
			ExpiresAt:   s.now().Add(s.idemTTL),
		}
		if err := s.idempotency.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		return s.insert(ctx, ownerID, norm, id)
	}

	return s.insert(ctx, ownerID, norm, s.newID())
}

func (s *Service) insert(ctx context.Context, ownerID uint, in CreateInput, id string) (*db.PaymentLink, error) {
	link := &db.PaymentLink{
		ID:          id,
		UserID:      ownerID,
		ProductName: in.ProductName,
		Amount:      in.Amount,
		Currency:    in.Currency,
		URL:         s.baseURL + "/pay/" + id,
	}
	if err := s.links.Insert(ctx, link); err != nil {
		return nil, fmt.Errorf("insert payment link: %w", err)
	}
	return link, nil
}

// List returns the owner's links, newest first. Scoping is server-side;
// callers never supply the owner filter themselves.
func (s *Service) List(ctx context.Context, ownerID uint) ([]db.PaymentLink, error) {
	links, err := s.links.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payment links: %w", err)
	}
	return links, nil
}

// Resolve loads a link by id and asks the checkout provider for a hosted
// session URL. Public: payers hit this without authentication.
func (s *Service) Resolve(ctx context.Context, linkID string) (string, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load payment link: %w", err)
	}

	stripeAccount := ""
	if s.accounts != nil {
		acct, err := s.accounts.GetStripeAccountID(ctx, link.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			// Minting the session without the connected account would
			// charge the payer on the platform account instead of the
			// merchant's; a lookup failure has to stop the checkout.
			return "", fmt.Errorf("resolve merchant stripe account: %w", err)
		}
		stripeAccount = acct
	}

	return s.provider.CreateSession(ctx, link, stripeAccount)
}

func validate(in CreateInput) (CreateInput, error) {
	in.ProductName = strings.TrimSpace(in.ProductName)
	if in.ProductName == "" {
		return in, &ValidationError{Field: "product_name", Reason: "must not be empty"}
	}

	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return in, &ValidationError{Field: "amount", Reason: "must be a finite number"}
	}
	if in.Amount <= 0 {
		return in, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	in.Currency = strings.ToLower(in.Currency)
	if len(in.Currency) != 3 || !SupportedCurrency(in.Currency) {
		return in, &ValidationError{Field: "currency", Reason: "unrecognized currency code"}
	}

	return in, nil
}

// requestHash fingerprints the normalized payload so idempotency replays
// can be told apart from key reuse. The amount is formatted at full
// precision; rounding here would make distinct payloads hash alike.
func requestHash(ownerID uint, in CreateInput) string {
	amount := strconv.FormatFloat(in.Amount, 'g', -1, 64)
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", ownerID, in.ProductName, amount, in.Currency)))
	return hex.EncodeToString(h[:])
}
