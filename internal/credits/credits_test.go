package credits

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/store"
)

func newTestService(cost int64) (*Service, *store.MemoryCredits, *events.Bus) {
	repo := store.NewMemoryCredits()
	bus := events.NewBus()
	return NewService(repo, bus, Options{DownloadCost: cost, WebhookSecret: "whsec"}, nil), repo, bus
}

func TestCharge_InsufficientCreditsLeavesBalance(t *testing.T) {
	svc, repo, bus := newTestService(1)
	ctx := context.Background()

	var published int
	events.Subscribe(bus, events.CreditsChangedTopic, func(events.CreditsChanged) { published++ })

	_, err := svc.Charge(ctx, "u1", "walgreens")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Expected ErrInsufficientCredits, got %v", err)
	}

	acct, _ := svc.Balance(ctx, "u1")
	if acct.Balance != 0 {
		t.Errorf("Expected balance 0, got %d", acct.Balance)
	}
	txns, _ := repo.Transactions(ctx, "u1", 0)
	if len(txns) != 0 {
		t.Errorf("Expected no ledger rows, got %d", len(txns))
	}
	if published != 0 {
		t.Errorf("Expected no credits_changed event, got %d", published)
	}
}

func TestCharge_Debits(t *testing.T) {
	svc, _, bus := newTestService(1)
	ctx := context.Background()
	svc.Grant(ctx, "u1", 2, store.KindGrant, "")

	var last events.CreditsChanged
	events.Subscribe(bus, events.CreditsChangedTopic, func(e events.CreditsChanged) { last = e })

	txn, err := svc.Charge(ctx, "u1", "walgreens")
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if txn.Amount != -1 || txn.Kind != store.KindDownload || txn.TemplateID != "walgreens" {
		t.Errorf("Unexpected ledger row: %+v", txn)
	}
	if last.UserID != "u1" || last.Balance != 1 {
		t.Errorf("Expected credits_changed with balance 1, got %+v", last)
	}
}

func TestCharge_SubscriberNotCharged(t *testing.T) {
	svc, repo, _ := newTestService(1)
	ctx := context.Background()

	if err := svc.Subscribe(ctx, "u1", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	txn, err := svc.Charge(ctx, "u1", "invoice")
	if err != nil {
		t.Fatalf("Expected subscriber download to succeed, got %v", err)
	}
	if txn.Kind != store.KindSubscription || txn.Amount != 0 {
		t.Errorf("Expected zero-amount SUBSCRIPTION row, got %+v", txn)
	}
	acct, _ := repo.Account(ctx, "u1")
	if acct.Balance != 0 {
		t.Errorf("Expected untouched balance, got %d", acct.Balance)
	}
}

func TestCharge_ExpiredSubscription(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()
	svc.Subscribe(ctx, "u1", time.Now().Add(-time.Hour))

	if _, err := svc.Charge(ctx, "u1", "invoice"); !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("Expected ErrInsufficientCredits after expiry, got %v", err)
	}
}

func TestGrant_InvalidAmount(t *testing.T) {
	svc, _, _ := newTestService(1)
	if _, _, err := svc.Grant(context.Background(), "u1", 0, store.KindGrant, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("whsec")
	body := []byte(`{"id":"pay_1"}`)
	sig := Sign(secret, body)

	tests := []struct {
		name    string
		secret  []byte
		body    []byte
		sig     string
		wantErr bool
	}{
		{"valid", secret, body, sig, false},
		{"valid with prefix", secret, body, "sha256=" + sig, false},
		{"tampered body", secret, []byte(`{"id":"pay_2"}`), sig, true},
		{"wrong secret", []byte("other"), body, sig, true},
		{"not hex", secret, body, "zz", true},
		{"no secret", nil, body, sig, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, tt.body, tt.sig)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleWebhook_GrantIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()
	body := []byte(`{"id":"pay_42","type":"credits.granted","user_id":"u1","credits":10}`)
	sig := Sign([]byte("whsec"), body)

	for i := 0; i < 2; i++ {
		res, err := svc.HandleWebhook(ctx, body, sig)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if res.Applied != (i == 0) {
			t.Errorf("delivery %d: Expected applied=%v", i, i == 0)
		}
		if res.Balance != 10 {
			t.Errorf("delivery %d: Expected balance 10, got %d", i, res.Balance)
		}
	}
}

func TestHandleWebhook_Subscription(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()
	until := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := []byte(fmt.Sprintf(`{"id":"sub_1","type":"subscription.active","user_id":"u1","subscription_until":%q}`, until))

	if _, err := svc.HandleWebhook(ctx, body, Sign([]byte("whsec"), body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	acct, _ := svc.Balance(ctx, "u1")
	if !acct.Subscribed(time.Now()) {
		t.Error("Expected active subscription")
	}
}

func TestHandleWebhook_Rejects(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	body := []byte(`{"id":"pay_1","type":"credits.granted","user_id":"u1","credits":5}`)
	if _, err := svc.HandleWebhook(ctx, body, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}

	unknown := []byte(`{"id":"x","type":"refund.created","user_id":"u1"}`)
	if _, err := svc.HandleWebhook(ctx, unknown, Sign([]byte("whsec"), unknown)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}

	acct, _ := svc.Balance(ctx, "u1")
	if acct.Balance != 0 {
		t.Errorf("Expected no credits from rejected webhooks, got %d", acct.Balance)
	}
}
