package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PaymentLink is a durable, shareable payment intent. Immutable once
// created: there is no edit path, only creation and reads.
type PaymentLink struct {
	// ID is a UUID assigned at creation.
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time

	// UserID is the merchant this link belongs to.
	UserID uint `gorm:"index;not null"`

	ProductName string `gorm:"size:255;not null"`

	// Amount is the price in major currency units (e.g. dollars), as
	// accepted at the API boundary. Conversion to minor units happens
	// at checkout-session time.
	Amount float64 `gorm:"not null"`

	// Currency is a lowercase ISO 4217 code.
	Currency string `gorm:"size:3;not null"`

	// URL is the shareable link a payer resolves to a checkout session.
	URL string `gorm:"size:512;not null"`
}

// LinkStore provides the persistence primitives the payment link
// service needs.
type LinkStore struct {
	db *gorm.DB
}

func NewLinkStore(db *gorm.DB) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) Insert(ctx context.Context, link *PaymentLink) error {
	return s.db.WithContext(ctx).Create(link).Error
}

// GetByID is not owner-scoped: the public checkout resolver looks links
// up by id alone.
func (s *LinkStore) GetByID(ctx context.Context, id string) (*PaymentLink, error) {
	var link PaymentLink
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *LinkStore) ListByOwner(ctx context.Context, ownerID uint) ([]PaymentLink, error) {
	var links []PaymentLink
	err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&links).Error
	return links, err
}
