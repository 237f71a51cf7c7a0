package tokenauth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// delFailer makes DEL of one record key fail before it reaches Redis.
type delFailer struct {
	key string
}

func (h delFailer) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h delFailer) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() == "del" && len(args) == 2 && args[1] == h.key {
			err := errors.New("injected del failure")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (h delFailer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRevokeAllCountsRecordFailures(t *testing.T) {
	mr, rdb := newTestRedis(t)
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewChannelSink(8)

	a, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLogger(zap.New(core)).
		WithMetricsEnabled(true).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(a.Close)

	p := testPrincipal(t, 5)
	ctx := context.Background()

	var refresh []string
	for i := 0; i < 3; i++ {
		pair, err := a.IssueTokenPair(ctx, p)
		if err != nil {
			t.Fatalf("IssueTokenPair failed: %v", err)
		}
		refresh = append(refresh, pair.RefreshToken)
	}
	claims, err := a.ReadToken(refresh[1])
	if err != nil || claims.Refresh == nil {
		t.Fatalf("ReadToken failed: %v", err)
	}
	stuck := claims.Refresh.JTI()
	rdb.AddHook(delFailer{key: "refresh_token:" + stuck})

	if err := a.RevokeAll(ctx, p.UserID()); err != nil {
		t.Fatalf("RevokeAll should succeed despite a failed record, got %v", err)
	}

	if got := a.MetricsSnapshot().Counters[MetricRevokeAllRecordFailures]; got != 1 {
		t.Fatalf("record failures = %d, want 1", got)
	}
	if got := a.MetricsSnapshot().Counters[MetricRevokeAll]; got != 1 {
		t.Fatalf("revoke all = %d, want 1", got)
	}
	if logs.FilterMessage("revoke all left records behind").FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatal("expected a warning about records left behind")
	}
	if mr.Exists("user_refresh_tokens:" + strconv.FormatInt(p.UserID(), 10)) {
		t.Fatal("expected user index to be cleared")
	}
	if !mr.Exists("refresh_token:" + stuck) {
		t.Fatal("expected the failed record to remain until it expires")
	}
	for _, i := range []int{0, 2} {
		if _, err := a.Rotate(ctx, refresh[i], p); !errors.Is(err, ErrRevoked) {
			t.Fatalf("token %d: expected ErrRevoked, got %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != EventTokensRevokedAll {
				continue
			}
			if !ev.Success || ev.Metadata["failed"] != "1" || ev.Metadata["deleted"] != "2" {
				t.Fatalf("unexpected revoke-all event %+v", ev)
			}
			return
		case <-deadline:
			t.Fatal("revoke-all audit event not delivered")
		}
	}
}
