package credits

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thereceipt/receipt-studio/internal/store"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

const (
	EventCreditsGranted     = "credits.granted"
	EventSubscriptionActive = "subscription.active"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownEvent     = errors.New("unknown webhook event")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// WebhookEvent is a payment provider notification.
type WebhookEvent struct {
	ID                string     `json:"id"` // payment reference
	Type              string     `json:"type"`
	UserID            string     `json:"user_id"`
	Credits           int64      `json:"credits,omitempty"`
	SubscriptionUntil *time.Time `json:"subscription_until,omitempty"`
}

// WebhookResult reports what a webhook did.
type WebhookResult struct {
	Event   WebhookEvent
	Applied bool
	Balance int64
}

// Sign returns the signature for body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks sig against body in constant time. An empty secret
// rejects everything.
func VerifySignature(secret, body []byte, sig string) error {
	if len(secret) == 0 {
		return ErrInvalidSignature
	}
	sig = strings.TrimPrefix(strings.TrimSpace(sig), "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// HandleWebhook verifies and applies a payment event. Replays of the same
// event id are acknowledged without changing the balance.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, sig string) (*WebhookResult, error) {
	if err := VerifySignature(s.secret, body, sig); err != nil {
		s.logger.Warn("webhook rejected", "error", err)
		return nil, err
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.ID == "" || ev.UserID == "" {
		return nil, fmt.Errorf("%w: id and user_id are required", ErrInvalidPayload)
	}

	switch ev.Type {
	case EventCreditsGranted:
		txn, applied, err := s.Grant(ctx, ev.UserID, ev.Credits, store.KindPurchase, ev.ID)
		if err != nil {
			return nil, err
		}
		return &WebhookResult{Event: ev, Applied: applied, Balance: txn.BalanceAfter}, nil

	case EventSubscriptionActive:
		if ev.SubscriptionUntil == nil {
			return nil, fmt.Errorf("%w: subscription_until is required", ErrInvalidPayload)
		}
		if err := s.Subscribe(ctx, ev.UserID, *ev.SubscriptionUntil); err != nil {
			return nil, err
		}
		acct, err := s.repo.Account(ctx, ev.UserID)
		if err != nil {
			return nil, err
		}
		return &WebhookResult{Event: ev, Applied: true, Balance: acct.Balance}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
	}
}
