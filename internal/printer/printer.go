// Package printer sends rendered receipts to ESC/POS thermal printers.
package printer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thereceipt/receipt-studio/internal/config"
)

// New builds the print queue described by cfg. It returns nil when printing
// is disabled.
func New(cfg config.PrinterConfig, logger *slog.Logger) (*Queue, error) {
	var dialer Dialer
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "network":
		if cfg.Address == "" {
			return nil, fmt.Errorf("printer address is required for network printers")
		}
		dialer = NetworkDialer{Address: cfg.Address}
	case "serial":
		if cfg.Device == "" {
			return nil, fmt.Errorf("printer device is required for serial printers")
		}
		dialer = SerialDialer{Device: cfg.Device, Baud: cfg.Baud}
	default:
		return nil, fmt.Errorf("unknown printer type %q", cfg.Type)
	}

	return NewQueue(dialer, QueueOptions{
		MaxRetries: cfg.Retries,
		Backoff:    500 * time.Millisecond,
	}, logger), nil
}
