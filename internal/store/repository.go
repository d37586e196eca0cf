package store

import (
	"context"
	"time"
)

// ReceiptRepository stores saved receipts.
type ReceiptRepository interface {
	// Upsert inserts r or replaces the receipt saved for the same user and template
	Upsert(ctx context.Context, r *SavedReceipt) error
	// Get returns the receipt saved for user and template, or ErrNotFound
	Get(ctx context.Context, userID, templateID string) (*SavedReceipt, error)
	// List returns a user's receipts, most recently updated first
	List(ctx context.Context, userID string) ([]SavedReceipt, error)
	// Delete removes the receipt saved for user and template
	Delete(ctx context.Context, userID, templateID string) error
}

// Entry describes a ledger change to apply.
type Entry struct {
	UserID     string
	Kind       TransactionKind
	Amount     int64
	Reference  string
	TemplateID string
}

// CreditRepository stores balances and the ledger.
type CreditRepository interface {
	// Account returns the user's account; a user with no account has a zero balance
	Account(ctx context.Context, userID string) (*CreditAccount, error)
	// Debit subtracts e.Amount only if the balance covers it, recording the
	// ledger row in the same transaction. It returns ErrInsufficientCredits
	// and changes nothing otherwise.
	Debit(ctx context.Context, e Entry) (*CreditTransaction, error)
	// Credit adds e.Amount. A non-empty reference already in the ledger is
	// not applied twice; the existing row is returned with applied false.
	Credit(ctx context.Context, e Entry) (txn *CreditTransaction, applied bool, err error)
	// Record writes a ledger row without touching the balance
	Record(ctx context.Context, e Entry) (*CreditTransaction, error)
	// SetSubscription sets or clears the subscription end
	SetSubscription(ctx context.Context, userID string, until *time.Time) error
	// Transactions returns the newest ledger rows for a user
	Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}

func refPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
