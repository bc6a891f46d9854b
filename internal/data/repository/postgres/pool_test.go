package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// Every configured retry must run when the caller passes an unbounded
// context; Connect bounds each attempt on its own.
func TestConnectRunsAllRetries(t *testing.T) {
	opts := ConnectOptions{
		MaxConns:       1,
		ConnectTimeout: 500 * time.Millisecond,
		IdleTimeout:    time.Minute,
		MaxRetries:     2,
		RetryDelay:     10 * time.Millisecond,
	}

	// Port 1 refuses immediately; every attempt fails fast.
	_, err := Connect(context.Background(), "postgres://localhost:1/nope", opts)
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Fatalf("Connect() error = %v, want ErrConnectionUnavailable", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Connect() error = %v, want all 3 attempts exhausted", err)
	}
}

func TestConnectStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := ConnectOptions{
		MaxConns:       1,
		ConnectTimeout: 500 * time.Millisecond,
		IdleTimeout:    time.Minute,
		MaxRetries:     5,
		RetryDelay:     time.Hour,
	}

	start := time.Now()
	_, err := Connect(ctx, "postgres://localhost:1/nope", opts)
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Fatalf("Connect() error = %v, want ErrConnectionUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Connect() kept retrying against a cancelled context")
	}
}

func TestConnectRejectsMalformedURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url", ConnectOptions{MaxConns: 1})
	if err == nil {
		t.Fatal("Connect() expected error for malformed connection string")
	}
	if errors.Is(err, ErrConnectionUnavailable) {
		t.Error("parse failure should not report connection unavailability")
	}
}
