package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/f07-workflow/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func transitioned() *event.Event {
	return event.NewEvent(event.TypeRequestTransitioned, 1, "F07-2026-01-0001", nil)
}

func TestSubscribe(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var order []string

		d.Subscribe(event.TypeRequestTransitioned, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.Subscribe(event.TypeRequestTransitioned, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		if err := d.Dispatch(context.Background(), transitioned()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("expected [first second], got %v", order)
		}
		if !logger.HasInfo("Handler registered") {
			t.Error("expected registration to be logged")
		}
	})

	t.Run("ignores other event types", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.TypeRequestSubmitted, "", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), transitioned()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if called {
			t.Error("expected submitted handler not to receive transitioned event")
		}
	})

	t.Run("catch-all handlers run after typed handlers", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.SubscribeAll("mirror", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "mirror")
			return nil
		})
		d.Subscribe(event.TypeRequestTransitioned, "notify", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "notify")
			return nil
		})

		if err := d.Dispatch(context.Background(), transitioned()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != "notify" || order[1] != "mirror" {
			t.Errorf("expected [notify mirror], got %v", order)
		}

		infos := d.ListHandlers(event.TypeNotificationRequested)
		if len(infos) != 1 || infos[0].Name != "mirror" || infos[0].Handler != nil {
			t.Errorf("unexpected handler listing: %+v", infos)
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var typed, all atomic.Int32
	d.Subscribe(event.TypeRequestTransitioned, "typed", func(ctx context.Context, evt *event.Event) error {
		typed.Add(1)
		return nil
	})
	d.SubscribeAll("all", func(ctx context.Context, evt *event.Event) error {
		all.Add(1)
		return nil
	})

	d.Unsubscribe(event.TypeRequestTransitioned, "typed")
	if err := d.Dispatch(context.Background(), transitioned()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	d.Unsubscribe("", "all")
	if err := d.Dispatch(context.Background(), transitioned()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if typed.Load() != 0 {
		t.Errorf("expected typed handler removed, got %d calls", typed.Load())
	}
	if all.Load() != 1 {
		t.Errorf("expected catch-all handler called once, got %d", all.Load())
	}
}

func TestDispatch(t *testing.T) {
	t.Run("stops at first error", func(t *testing.T) {
		d := NewDispatcher()
		expected := errors.New("lark unavailable")
		called := false

		d.Subscribe(event.TypeRequestTransitioned, "failing", func(ctx context.Context, evt *event.Event) error {
			return expected
		})
		d.Subscribe(event.TypeRequestTransitioned, "after", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), transitioned())
		if !errors.Is(err, expected) {
			t.Fatalf("expected wrapped handler error, got %v", err)
		}
		if called {
			t.Error("expected later handler to be skipped")
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeRequestTransitioned, "panics", func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		})

		if err := d.Dispatch(context.Background(), transitioned()); err == nil {
			t.Fatal("expected error from recovered panic")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("rejects events after close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := d.Dispatch(context.Background(), transitioned()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		if err := d.Close(); err == nil {
			t.Error("expected second close to fail")
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("failures do not stop other handlers", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeNotificationRequested, "failing", func(ctx context.Context, evt *event.Event) error {
			return errors.New("send failed")
		})
		d.Subscribe(event.TypeNotificationRequested, "ok", func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeNotificationRequested, 1, "F07-2026-01-0001", nil))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if called.Load() != 1 {
			t.Errorf("expected healthy handler to run once, got %d", called.Load())
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected failure to be logged")
		}
	})

	t.Run("applies handler timeout", func(t *testing.T) {
		d := NewDispatcher(WithHandlerTimeout(20 * time.Millisecond))
		var deadlineSeen atomic.Bool

		d.Subscribe(event.TypeRequestTransitioned, "slow", func(ctx context.Context, evt *event.Event) error {
			if _, ok := ctx.Deadline(); ok {
				deadlineSeen.Store(true)
			}
			<-ctx.Done()
			return ctx.Err()
		})

		d.DispatchAsync(context.Background(), transitioned())
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if !deadlineSeen.Load() {
			t.Error("expected handler context to carry a deadline")
		}
	})

	t.Run("caps concurrent handlers", func(t *testing.T) {
		d := NewDispatcher(WithMaxInFlight(2))
		var running, peak atomic.Int32

		d.Subscribe(event.TypeNotificationRequested, "bounded", func(ctx context.Context, evt *event.Event) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})

		for i := 0; i < 10; i++ {
			d.DispatchAsync(context.Background(), event.NewEvent(event.TypeNotificationRequested, int64(i), "", nil))
		}
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent handlers, saw %d", peak.Load())
		}
	})

	t.Run("drops events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false
		d.Subscribe(event.TypeRequestTransitioned, "late", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})
		_ = d.Close()

		d.DispatchAsync(context.Background(), transitioned())
		if called {
			t.Error("expected no handler to run after close")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected one error log, got %d", logger.ErrorCount())
		}
	})
}
