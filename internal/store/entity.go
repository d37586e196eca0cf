// Package store persists saved receipts and the credit ledger.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// TransactionKind classifies ledger rows.
type TransactionKind string

const (
	KindDownload     TransactionKind = "DOWNLOAD"
	KindPurchase     TransactionKind = "PURCHASE"
	KindSubscription TransactionKind = "SUBSCRIPTION"
	KindGrant        TransactionKind = "GRANT"
)

// SavedReceipt is a user's explicitly saved receipt. There is at most one per
// user and template.
type SavedReceipt struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"size:64;not null;uniqueIndex:idx_saved_receipts_user_template" json:"user_id"`
	TemplateID string         `gorm:"size:128;not null;uniqueIndex:idx_saved_receipts_user_template" json:"template_id"`
	Name       string         `gorm:"size:255" json:"name"`
	Document   datatypes.JSON `gorm:"type:jsonb;not null" json:"document"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SavedReceipt) TableName() string {
	return "saved_receipts"
}

func (r *SavedReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// CreditAccount holds a user's download balance.
type CreditAccount struct {
	UserID            string     `gorm:"size:64;primaryKey" json:"user_id"`
	Balance           int64      `gorm:"not null;default:0" json:"balance"`
	SubscriptionUntil *time.Time `json:"subscription_until,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditAccount) TableName() string {
	return "credit_accounts"
}

// Subscribed reports whether the account has an active subscription at t.
func (a *CreditAccount) Subscribed(t time.Time) bool {
	return a.SubscriptionUntil != nil && t.Before(*a.SubscriptionUntil)
}

// CreditTransaction is one ledger row. Amount is negative for debits.
type CreditTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string          `gorm:"size:64;not null;index" json:"user_id"`
	Kind         TransactionKind `gorm:"size:32;not null" json:"kind"`
	Amount       int64           `gorm:"not null" json:"amount"`
	BalanceAfter int64           `gorm:"not null" json:"balance_after"`
	Reference    *string         `gorm:"size:128;uniqueIndex" json:"reference,omitempty"` // payment id, unique when set
	TemplateID   string          `gorm:"size:128" json:"template_id,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Models lists every entity for migrations.
func Models() []any {
	return []any{&SavedReceipt{}, &CreditAccount{}, &CreditTransaction{}}
}
