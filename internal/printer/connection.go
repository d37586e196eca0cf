package printer

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tarm/serial"
)

// Dialer opens a fresh connection to a printer for one job.
type Dialer interface {
	Dial(ctx context.Context) (io.WriteCloser, error)
	String() string
}

// NetworkDialer reaches a raw-socket printer, usually on port 9100.
type NetworkDialer struct {
	Address string
	Timeout time.Duration
}

func (d NetworkDialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	address := d.Address
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "9100")
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	return conn, nil
}

func (d NetworkDialer) String() string { return "tcp://" + d.Address }

// SerialDialer opens a serial or USB-serial printer.
type SerialDialer struct {
	Device string
	Baud   int
}

func (d SerialDialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	baud := d.Baud
	if baud == 0 {
		baud = 9600 // Default baud rate for most thermal printers
	}

	port, err := serial.OpenPort(&serial.Config{Name: d.Device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

func (d SerialDialer) String() string { return "serial://" + d.Device }
