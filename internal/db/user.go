package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// User represents a merchant account that can sign in to the dashboard
// and own API keys and payment links. The bootstrap admin user (from env)
// will be created as a row in this table on startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// IsAdmin marks users that can manage other users. The bootstrap
	// admin will have IsAdmin=true.
	IsAdmin bool `gorm:"default:false"`

	// StripeAccountID is the connected Stripe account checkout sessions
	// are created on behalf of. Empty until the merchant links one.
	StripeAccountID string `gorm:"size:64;index"`
}

// UserStore wraps the user queries the rest of the service needs.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, u *User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("password_hash", hash).Error
}

func (s *UserStore) SetStripeAccountID(ctx context.Context, userID uint, accountID string) error {
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("stripe_account_id", accountID).Error
}

// GetStripeAccountID returns the linked Stripe account for a user, or ""
// when none is linked.
func (s *UserStore) GetStripeAccountID(ctx context.Context, userID uint) (string, error) {
	var u User
	if err := s.db.WithContext(ctx).Select("stripe_account_id").First(&u, userID).Error; err != nil {
		return "", err
	}
	return u.StripeAccountID, nil
}

// FindByStripeAccountID attributes a connected-account webhook event to a
// user. Returns 0 when no user has linked that account.
func (s *UserStore) FindByStripeAccountID(ctx context.Context, accountID string) (uint, error) {
	if accountID == "" {
		return 0, nil
	}
	var u User
	err := s.db.WithContext(ctx).Where("stripe_account_id = ?", accountID).Limit(1).Find(&u).Error
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}
