package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a gorm backed receipt repository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Upsert(ctx context.Context, rec *SavedReceipt) error {
	return upsertQuery(r.db.WithContext(ctx), rec).Error
}

// upsertQuery is INSERT ... ON CONFLICT (user_id, template_id) DO UPDATE.
func upsertQuery(db *gorm.DB, rec *SavedReceipt) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "template_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "document", "updated_at"}),
	}).Create(rec)
}

func (r *receiptRepository) Get(ctx context.Context, userID, templateID string) (*SavedReceipt, error) {
	var rec SavedReceipt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND template_id = ?", userID, templateID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

func (r *receiptRepository) List(ctx context.Context, userID string) ([]SavedReceipt, error) {
	var recs []SavedReceipt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&recs).Error
	return recs, err
}

func (r *receiptRepository) Delete(ctx context.Context, userID, templateID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND template_id = ?", userID, templateID).
		Delete(&SavedReceipt{}).Error
}

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a gorm backed credit repository
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) Account(ctx context.Context, userID string) (*CreditAccount, error) {
	var acct CreditAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CreditAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// debitQuery is UPDATE credit_accounts SET balance = balance - amount
// WHERE user_id = ? AND balance >= amount.
func debitQuery(db *gorm.DB, userID string, amount int64) *gorm.DB {
	return db.Model(&CreditAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
}

func (r *creditRepository) Debit(ctx context.Context, e Entry) (*CreditTransaction, error) {
	var txn *CreditTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := debitQuery(tx, e.UserID, e.Amount)
		if result.Error != nil {
			return result.Error
		}
		// No row matched: missing account or balance below amount
		if result.RowsAffected == 0 {
			return ErrInsufficientCredits
		}

		var acct CreditAccount
		if err := tx.Where("user_id = ?", e.UserID).First(&acct).Error; err != nil {
			return err
		}

		txn = &CreditTransaction{
			UserID:       e.UserID,
			Kind:         e.Kind,
			Amount:       -e.Amount,
			BalanceAfter: acct.Balance,
			Reference:    refPtr(e.Reference),
			TemplateID:   e.TemplateID,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *creditRepository) Credit(ctx context.Context, e Entry) (*CreditTransaction, bool, error) {
	var (
		txn     *CreditTransaction
		applied bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.Reference != "" {
			var existing CreditTransaction
			err := tx.Where("reference = ?", e.Reference).First(&existing).Error
			if err == nil {
				txn = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		acct := CreditAccount{UserID: e.UserID, Balance: e.Amount}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("credit_accounts.balance + ?", e.Amount),
				"updated_at": time.Now(),
			}),
		}).Create(&acct).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", e.UserID).First(&acct).Error; err != nil {
			return err
		}

		txn = &CreditTransaction{
			UserID:       e.UserID,
			Kind:         e.Kind,
			Amount:       e.Amount,
			BalanceAfter: acct.Balance,
			Reference:    refPtr(e.Reference),
			TemplateID:   e.TemplateID,
		}
		applied = true
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, false, err
	}
	return txn, applied, nil
}

func (r *creditRepository) Record(ctx context.Context, e Entry) (*CreditTransaction, error) {
	acct, err := r.Account(ctx, e.UserID)
	if err != nil {
		return nil, err
	}
	txn := &CreditTransaction{
		UserID:       e.UserID,
		Kind:         e.Kind,
		BalanceAfter: acct.Balance,
		Reference:    refPtr(e.Reference),
		TemplateID:   e.TemplateID,
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *creditRepository) SetSubscription(ctx context.Context, userID string, until *time.Time) error {
	acct := CreditAccount{UserID: userID, SubscriptionUntil: until}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_until", "updated_at"}),
	}).Create(&acct).Error
}

func (r *creditRepository) Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
