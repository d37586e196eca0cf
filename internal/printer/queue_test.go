package printer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/thereceipt/receipt-studio/internal/config"
)

type recorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed int
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

type flakyDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conn     *recorder
}

func (d *flakyDialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	return d.conn, nil
}

func (d *flakyDialer) String() string { return "fake" }

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 16, 4))
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	d := &flakyDialer{failures: 2, conn: &recorder{}}
	q := NewQueue(d, QueueOptions{MaxRetries: 3, Backoff: time.Millisecond}, nil)
	defer q.Stop()

	if err := q.Print(context.Background(), testImage()); err != nil {
		t.Fatalf("Expected print to succeed on third attempt, got %v", err)
	}
	if d.dials != 3 {
		t.Errorf("Expected 3 dials, got %d", d.dials)
	}
	if !bytes.Equal(d.conn.buf.Bytes(), Encode(testImage(), 0)) {
		t.Error("Expected the encoded job to be written")
	}
	if d.conn.closed != 1 {
		t.Errorf("Expected the connection closed once, got %d", d.conn.closed)
	}

	jobs := q.Jobs()
	if len(jobs) != 1 || jobs[0].Status != StatusCompleted || jobs[0].Attempts != 3 {
		t.Errorf("Expected one completed job after 3 attempts, got %+v", jobs)
	}
}

func TestQueue_GivesUp(t *testing.T) {
	d := &flakyDialer{failures: 10, conn: &recorder{}}
	q := NewQueue(d, QueueOptions{MaxRetries: 2, Backoff: time.Millisecond}, nil)
	defer q.Stop()

	err := q.Print(context.Background(), testImage())
	if !errors.Is(err, ErrPrintFailed) {
		t.Fatalf("Expected ErrPrintFailed, got %v", err)
	}
	if d.dials != 2 {
		t.Errorf("Expected 2 dials, got %d", d.dials)
	}
	if jobs := q.Jobs(); jobs[0].Status != StatusFailed {
		t.Errorf("Expected failed job, got %s", jobs[0].Status)
	}
}

func TestQueue_Stopped(t *testing.T) {
	q := NewQueue(&flakyDialer{conn: &recorder{}}, QueueOptions{}, nil)
	q.Stop()

	if err := q.Print(context.Background(), testImage()); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("Expected ErrQueueStopped, got %v", err)
	}
}

func TestNetworkDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	q := NewQueue(NetworkDialer{Address: ln.Addr().String()}, QueueOptions{}, nil)
	defer q.Stop()

	if err := q.Print(context.Background(), testImage()); err != nil {
		t.Fatalf("Print: %v", err)
	}

	select {
	case data := <-received:
		if !bytes.Equal(data, Encode(testImage(), 0)) {
			t.Errorf("Expected %d bytes of ESC/POS, got %d", len(Encode(testImage(), 0)), len(data))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the printer to receive the job")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PrinterConfig
		enabled bool
		wantErr bool
	}{
		{"none", config.PrinterConfig{Type: "none"}, false, false},
		{"empty", config.PrinterConfig{}, false, false},
		{"network", config.PrinterConfig{Type: "network", Address: "10.0.0.5"}, true, false},
		{"network without address", config.PrinterConfig{Type: "network"}, false, true},
		{"serial", config.PrinterConfig{Type: "SERIAL", Device: "/dev/ttyUSB0"}, true, false},
		{"serial without device", config.PrinterConfig{Type: "serial"}, false, true},
		{"usb", config.PrinterConfig{Type: "usb"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (q != nil) != tt.enabled {
				t.Errorf("Expected enabled=%v, got %v", tt.enabled, q != nil)
			}
			if q != nil {
				q.Stop()
			}
		})
	}
}
