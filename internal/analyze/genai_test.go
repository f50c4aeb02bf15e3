package analyze

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitBackoffReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := waitBackoff(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled wait should return immediately")
	}
}

func TestWaitBackoffElapses(t *testing.T) {
	if err := waitBackoff(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
