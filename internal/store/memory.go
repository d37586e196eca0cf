package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryReceipts is an in-memory ReceiptRepository.
type MemoryReceipts struct {
	mu   sync.RWMutex
	recs map[[2]string]SavedReceipt
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{recs: make(map[[2]string]SavedReceipt)}
}

func (m *MemoryReceipts) Upsert(ctx context.Context, r *SavedReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{r.UserID, r.TemplateID}
	now := time.Now()
	if cur, ok := m.recs[key]; ok {
		r.ID = cur.ID
		r.CreatedAt = cur.CreatedAt
	} else {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	rec := *r
	rec.Document = append([]byte(nil), r.Document...)
	m.recs[key] = rec
	return nil
}

func (m *MemoryReceipts) Get(ctx context.Context, userID, templateID string) (*SavedReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.recs[[2]string{userID, templateID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryReceipts) List(ctx context.Context, userID string) ([]SavedReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SavedReceipt
	for _, rec := range m.recs {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *MemoryReceipts) Delete(ctx context.Context, userID, templateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, [2]string{userID, templateID})
	return nil
}

// MemoryCredits is an in-memory CreditRepository. One mutex guards balances
// and the ledger so every operation is atomic.
type MemoryCredits struct {
	mu       sync.Mutex
	accounts map[string]*CreditAccount
	ledger   []CreditTransaction
}

func NewMemoryCredits() *MemoryCredits {
	return &MemoryCredits{accounts: make(map[string]*CreditAccount)}
}

func (m *MemoryCredits) Account(ctx context.Context, userID string) (*CreditAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct, ok := m.accounts[userID]; ok {
		cp := *acct
		return &cp, nil
	}
	return &CreditAccount{UserID: userID}, nil
}

func (m *MemoryCredits) account(userID string) *CreditAccount {
	acct, ok := m.accounts[userID]
	if !ok {
		now := time.Now()
		acct = &CreditAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}
		m.accounts[userID] = acct
	}
	return acct
}

func (m *MemoryCredits) append(e Entry, amount, balance int64) *CreditTransaction {
	txn := CreditTransaction{
		ID:           uuid.New(),
		UserID:       e.UserID,
		Kind:         e.Kind,
		Amount:       amount,
		BalanceAfter: balance,
		Reference:    refPtr(e.Reference),
		TemplateID:   e.TemplateID,
		CreatedAt:    time.Now(),
	}
	m.ledger = append(m.ledger, txn)
	return &txn
}

func (m *MemoryCredits) Debit(ctx context.Context, e Entry) (*CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[e.UserID]
	if !ok || acct.Balance < e.Amount {
		return nil, ErrInsufficientCredits
	}
	acct.Balance -= e.Amount
	acct.UpdatedAt = time.Now()
	return m.append(e, -e.Amount, acct.Balance), nil
}

func (m *MemoryCredits) Credit(ctx context.Context, e Entry) (*CreditTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Reference != "" {
		for i := range m.ledger {
			if ref := m.ledger[i].Reference; ref != nil && *ref == e.Reference {
				txn := m.ledger[i]
				return &txn, false, nil
			}
		}
	}

	acct := m.account(e.UserID)
	acct.Balance += e.Amount
	acct.UpdatedAt = time.Now()
	return m.append(e, e.Amount, acct.Balance), true, nil
}

func (m *MemoryCredits) Record(ctx context.Context, e Entry) (*CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var balance int64
	if acct, ok := m.accounts[e.UserID]; ok {
		balance = acct.Balance
	}
	return m.append(e, 0, balance), nil
}

func (m *MemoryCredits) SetSubscription(ctx context.Context, userID string, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.account(userID)
	acct.SubscriptionUntil = until
	acct.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryCredits) Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []CreditTransaction
	for i := len(m.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if m.ledger[i].UserID == userID {
			out = append(out, m.ledger[i])
		}
	}
	return out, nil
}
