package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// nil receivers are safe
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "token_issued"})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
			continue
		default:
		}
		break
	}
	if got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	select {
	case <-sink.Events():
		t.Fatal("event accepted after close")
	default:
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "token_rotated"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink")
	}

	close(sink.gate)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "token_revoked", UserID: "7", JTI: "j1", Success: true})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded["event_type"] != "token_revoked" || decoded["jti"] != "j1" {
		t.Fatalf("unexpected payload %s", line)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "token_issued", UserID: "7", Success: true})
	sink.Emit(context.Background(), Event{EventType: "token_rotate_rejected", UserID: "7", Error: "revoked"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].Message != "token_issued" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "revoked" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

type panicSink struct {
	calls chan string
}

func (s *panicSink) Emit(_ context.Context, e Event) {
	s.calls <- e.EventType
	if e.EventType == "boom" {
		panic("sink failure")
	}
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := &panicSink{calls: make(chan string, 4)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, Logger: zap.New(core)}, sink)

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "token_issued"})
	d.Close()

	if got := <-sink.calls; got != "boom" {
		t.Fatalf("expected boom first, got %q", got)
	}
	if got := <-sink.calls; got != "token_issued" {
		t.Fatalf("expected delivery after panic, got %q", got)
	}
	if logs.FilterMessage("audit sink panicked").Len() != 1 {
		t.Fatalf("expected one panic log, got %d", logs.Len())
	}
}

func TestDispatcherStampsTimestampAndLogsFirstDrop(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true, Logger: zap.New(core)}, sink)

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "token_rotated"})
	}
	close(sink.gate)
	d.Close()

	if logs.FilterMessage("audit events dropped").Len() == 0 {
		t.Fatal("expected the first drop to be logged")
	}

	ch := NewChannelSink(1)
	d2 := NewDispatcher(Config{Enabled: true, BufferSize: 1}, ch)
	d2.Emit(context.Background(), Event{EventType: "token_revoked"})
	d2.Close()
	if e := <-ch.Events(); e.Timestamp.IsZero() {
		t.Fatal("expected Timestamp to be stamped")
	}
}

func TestBlockingEmitGivesUpOnContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// The first event parks in the sink and the next fills the buffer, so
	// later emits can only finish through ctx.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(ctx, Event{EventType: "c"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected a cancelled blocking emit to count as dropped")
	}

	close(sink.gate)
	d.Close()
}
