package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(ctx context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and buffer of one")
	}

	close(sink.release)
	d.Close()
	if got := d.Delivered() + d.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink, nil)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "staff_created"})
	}
	d.Close()

	if len(sink.Events()) != 5 {
		t.Fatalf("expected 5 delivered events, got %d", len(sink.Events()))
	}
	d.Emit(context.Background(), Event{EventType: "late"})
	if len(sink.Events()) != 5 {
		t.Fatal("emit after close must be ignored")
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink broke") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{}, zap.New(core))
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if d.Panicked() != 2 || d.Delivered() != 0 {
		t.Fatalf("panicked=%d delivered=%d, want 2 and 0", d.Panicked(), d.Delivered())
	}
	if logs.FilterMessage("audit sink panicked").Len() != 2 {
		t.Fatalf("expected two panic log entries, got %d", logs.Len())
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Emit(ctx, Event{EventType: "third"})
	if d.Dropped() != 1 {
		t.Fatalf("expected cancelled emit to count as dropped, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
	d.Close()
	if d.Delivered() != 2 {
		t.Fatalf("expected 2 delivered, got %d", d.Delivered())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "login_success", PrincipalID: "a1", TenantID: "HOSP0001", Success: true})

	var got Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &got); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if got.EventType != "login_success" || got.TenantID != "HOSP0001" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewZapSink(zap.New(core))

	s.Emit(context.Background(), Event{EventType: "login_success", Success: true, Timestamp: time.Now()})
	s.Emit(context.Background(), Event{
		EventType: "login_failure",
		Error:     "account_locked",
		TenantID:  "HOSP0001",
		Metadata:  map[string]string{"remaining_minutes": "120"},
	})

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].Level != zapcore.InfoLevel || all[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels %v %v", all[0].Level, all[1].Level)
	}
	ctx := all[1].ContextMap()
	if ctx["error_code"] != "account_locked" || ctx["meta.remaining_minutes"] != "120" {
		t.Fatalf("unexpected fields %v", ctx)
	}
}
