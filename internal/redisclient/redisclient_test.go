package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()

	client, err := Connect(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestConnectGivesUp(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.MaxRetries = 1
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.DialTimeout = 100 * time.Millisecond

	if _, err := Connect(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected Connect to fail against a closed server")
	}
}
