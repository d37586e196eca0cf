// Package credits charges downloads against a user's balance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/store"
)

var (
	// ErrInsufficientCredits is returned when the balance does not cover a
	// download. Nothing is charged.
	ErrInsufficientCredits = store.ErrInsufficientCredits
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// Service wraps the ledger and announces balance changes.
type Service struct {
	repo   store.CreditRepository
	bus    *events.Bus
	cost   int64
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

// Options configures a Service.
type Options struct {
	DownloadCost  int64
	WebhookSecret string
}

func NewService(repo store.CreditRepository, bus *events.Bus, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		bus:    bus,
		cost:   opts.DownloadCost,
		secret: []byte(opts.WebhookSecret),
		logger: logger,
		now:    time.Now,
	}
}

// DownloadCost is the number of credits one download takes.
func (s *Service) DownloadCost() int64 {
	return s.cost
}

// Balance returns the user's account.
func (s *Service) Balance(ctx context.Context, userID string) (*store.CreditAccount, error) {
	return s.repo.Account(ctx, userID)
}

// Charge takes the download cost from the user. Subscribers are not charged;
// a zero-amount SUBSCRIPTION row is written instead.
func (s *Service) Charge(ctx context.Context, userID, templateID string) (*store.CreditTransaction, error) {
	acct, err := s.repo.Account(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}

	if acct.Subscribed(s.now()) || s.cost == 0 {
		txn, err := s.repo.Record(ctx, store.Entry{
			UserID:     userID,
			Kind:       store.KindSubscription,
			TemplateID: templateID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record download: %w", err)
		}
		return txn, nil
	}

	txn, err := s.repo.Debit(ctx, store.Entry{
		UserID:     userID,
		Kind:       store.KindDownload,
		Amount:     s.cost,
		TemplateID: templateID,
	})
	if errors.Is(err, store.ErrInsufficientCredits) {
		s.logger.Info("download refused", "user_id", userID, "balance", acct.Balance, "cost", s.cost)
		return nil, ErrInsufficientCredits
	}
	if err != nil {
		return nil, fmt.Errorf("failed to charge download: %w", err)
	}

	s.changed(userID, txn.BalanceAfter)
	return txn, nil
}

// Grant adds credits. A reference seen before is not applied again.
func (s *Service) Grant(ctx context.Context, userID string, amount int64, kind store.TransactionKind, reference string) (*store.CreditTransaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}

	txn, applied, err := s.repo.Credit(ctx, store.Entry{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to grant credits: %w", err)
	}

	if applied {
		s.logger.Info("credits granted", "user_id", userID, "amount", amount, "reference", reference)
		s.changed(userID, txn.BalanceAfter)
	}
	return txn, applied, nil
}

// Subscribe marks the user as subscribed until the given time.
func (s *Service) Subscribe(ctx context.Context, userID string, until time.Time) error {
	if err := s.repo.SetSubscription(ctx, userID, &until); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	acct, err := s.repo.Account(ctx, userID)
	if err == nil {
		s.changed(userID, acct.Balance)
	}
	return nil
}

// History returns the newest ledger rows.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]store.CreditTransaction, error) {
	return s.repo.Transactions(ctx, userID, limit)
}

func (s *Service) changed(userID string, balance int64) {
	events.Publish(s.bus, events.CreditsChangedTopic, events.CreditsChanged{
		UserID:  userID,
		Balance: balance,
		At:      s.now(),
	})
}
