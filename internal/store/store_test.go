package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMemoryCredits_DebitInsufficient(t *testing.T) {
	repo := NewMemoryCredits()
	ctx := context.Background()

	repo.Credit(ctx, Entry{UserID: "u1", Kind: KindPurchase, Amount: 1})

	if _, err := repo.Debit(ctx, Entry{UserID: "u1", Kind: KindDownload, Amount: 2}); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Expected ErrInsufficientCredits, got %v", err)
	}

	acct, _ := repo.Account(ctx, "u1")
	if acct.Balance != 1 {
		t.Errorf("Expected balance to stay 1, got %d", acct.Balance)
	}
	txns, _ := repo.Transactions(ctx, "u1", 0)
	if len(txns) != 1 {
		t.Errorf("Expected only the purchase in the ledger, got %d rows", len(txns))
	}
}

func TestMemoryCredits_DebitUnknownUser(t *testing.T) {
	repo := NewMemoryCredits()
	if _, err := repo.Debit(context.Background(), Entry{UserID: "ghost", Amount: 1}); !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("Expected ErrInsufficientCredits, got %v", err)
	}
}

func TestMemoryCredits_ConcurrentDebits(t *testing.T) {
	repo := NewMemoryCredits()
	ctx := context.Background()
	repo.Credit(ctx, Entry{UserID: "u1", Kind: KindPurchase, Amount: 5})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, Entry{UserID: "u1", Kind: KindDownload, Amount: 1}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	acct, _ := repo.Account(ctx, "u1")
	if ok != 5 || acct.Balance != 0 {
		t.Errorf("Expected exactly 5 debits and zero balance, got %d debits and balance %d", ok, acct.Balance)
	}
}

func TestMemoryCredits_CreditIdempotent(t *testing.T) {
	repo := NewMemoryCredits()
	ctx := context.Background()
	e := Entry{UserID: "u1", Kind: KindPurchase, Amount: 10, Reference: "pay_123"}

	first, applied, err := repo.Credit(ctx, e)
	if err != nil || !applied {
		t.Fatalf("Expected first credit to apply, got applied=%v err=%v", applied, err)
	}
	second, applied, err := repo.Credit(ctx, e)
	if err != nil || applied {
		t.Fatalf("Expected replay to be ignored, got applied=%v err=%v", applied, err)
	}
	if first.ID != second.ID {
		t.Error("Expected the original ledger row on replay")
	}

	acct, _ := repo.Account(ctx, "u1")
	if acct.Balance != 10 {
		t.Errorf("Expected balance 10, got %d", acct.Balance)
	}
}

func TestMemoryCredits_RecordKeepsBalance(t *testing.T) {
	repo := NewMemoryCredits()
	ctx := context.Background()
	repo.Credit(ctx, Entry{UserID: "u1", Kind: KindGrant, Amount: 3})

	txn, err := repo.Record(ctx, Entry{UserID: "u1", Kind: KindSubscription})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if txn.Amount != 0 || txn.BalanceAfter != 3 {
		t.Errorf("Expected zero-amount row at balance 3, got %+v", txn)
	}
}

func TestMemoryCredits_Subscription(t *testing.T) {
	repo := NewMemoryCredits()
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	repo.SetSubscription(ctx, "u1", &until)
	acct, _ := repo.Account(ctx, "u1")
	if !acct.Subscribed(time.Now()) {
		t.Error("Expected active subscription")
	}
	if acct.Subscribed(until.Add(time.Second)) {
		t.Error("Expected subscription to lapse after its end")
	}
}

func TestMemoryReceipts_UpsertByUserAndTemplate(t *testing.T) {
	repo := NewMemoryReceipts()
	ctx := context.Background()

	first := &SavedReceipt{UserID: "u1", TemplateID: "walgreens", Name: "v1", Document: []byte(`{}`)}
	repo.Upsert(ctx, first)
	second := &SavedReceipt{UserID: "u1", TemplateID: "walgreens", Name: "v2", Document: []byte(`{}`)}
	repo.Upsert(ctx, second)
	repo.Upsert(ctx, &SavedReceipt{UserID: "u1", TemplateID: "invoice", Name: "other"})

	if first.ID != second.ID {
		t.Error("Expected the second save to replace the first")
	}
	got, err := repo.Get(ctx, "u1", "walgreens")
	if err != nil || got.Name != "v2" {
		t.Errorf("Expected v2, got %+v, %v", got, err)
	}
	list, _ := repo.List(ctx, "u1")
	if len(list) != 2 {
		t.Errorf("Expected 2 saved receipts, got %d", len(list))
	}

	repo.Delete(ctx, "u1", "walgreens")
	if _, err := repo.Get(ctx, "u1", "walgreens"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

// dryRunDB builds SQL without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open dry-run db: %v", err)
	}
	return db
}

func TestDebitQuery_IsConditional(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return debitQuery(tx, "u1", 1)
	})

	for _, want := range []string{`UPDATE "credit_accounts"`, "balance - 1", "user_id = 'u1' AND balance >= 1"} {
		if !strings.Contains(sql, want) {
			t.Errorf("Expected %q in %s", want, sql)
		}
	}
}

func TestUpsertQuery_ConflictsOnUserAndTemplate(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsertQuery(tx, &SavedReceipt{UserID: "u1", TemplateID: "walgreens", Document: []byte(`{}`)})
	})

	if !strings.Contains(sql, `ON CONFLICT ("user_id","template_id") DO UPDATE`) {
		t.Errorf("Expected upsert on user and template, got %s", sql)
	}
}
