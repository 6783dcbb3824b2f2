package supervisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestRun_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		fn      Func
		outcome Outcome
		errMsg  string
	}{
		{
			name:    "success",
			fn:      func(ctx context.Context, op *Operation) (any, error) { return 42, nil },
			outcome: Succeeded,
		},
		{
			name:    "failure",
			fn:      func(ctx context.Context, op *Operation) (any, error) { return nil, errors.New("boom") },
			outcome: Failed,
			errMsg:  "boom",
		},
		{
			name: "wrapped cancellation",
			fn: func(ctx context.Context, op *Operation) (any, error) {
				return nil, fmt.Errorf("scanning: %w", context.Canceled)
			},
			outcome: Cancelled,
		},
		{
			name:    "panic",
			fn:      func(ctx context.Context, op *Operation) (any, error) { panic("bad") },
			outcome: Failed,
			errMsg:  "operation panicked: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			res := s.Run(context.Background(), tt.name, tt.fn)
			if res.Outcome != tt.outcome {
				t.Fatalf("expected %s, got %s (%s)", tt.outcome, res.Outcome, res.Error)
			}
			if res.Error != tt.errMsg {
				t.Errorf("expected error %q, got %q", tt.errMsg, res.Error)
			}
		})
	}
}

func TestRun_ValueReturned(t *testing.T) {
	s := New()
	res := s.Run(context.Background(), "value", func(ctx context.Context, op *Operation) (any, error) {
		return "done", nil
	})
	if res.Value != "done" {
		t.Errorf("expected value 'done', got %v", res.Value)
	}
}

func TestStart_CancelsPrevious(t *testing.T) {
	s := New()
	started := make(chan struct{})

	first := s.Start("first", func(ctx context.Context, op *Operation) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	second := s.Start("second", func(ctx context.Context, op *Operation) (any, error) {
		return nil, nil
	})

	// Start returns only after the previous operation has finished.
	select {
	case <-first.Done():
	default:
		t.Fatal("expected first operation to be finished")
	}
	if got := first.Wait().Outcome; got != Cancelled {
		t.Errorf("expected first to be cancelled, got %s", got)
	}
	if got := second.Wait().Outcome; got != Succeeded {
		t.Errorf("expected second to succeed, got %s", got)
	}
	if s.Current() != second {
		t.Error("expected current to be the second operation")
	}
}

func TestStart_OnlyOneRunsAtATime(t *testing.T) {
	s := New()
	var (
		mu      sync.Mutex
		running int
		maxSeen int
	)
	body := func(ctx context.Context, op *Operation) (any, error) {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		mu.Unlock()

		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}

		mu.Lock()
		running--
		mu.Unlock()
		return nil, ctx.Err()
	}

	var last *Operation
	for i := range 10 {
		last = s.Start(fmt.Sprintf("op-%d", i), body)
	}
	last.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one running operation, saw %d", maxSeen)
	}
}

func TestCancel(t *testing.T) {
	s := New()
	if s.Cancel() {
		t.Error("expected Cancel with no operation to return false")
	}

	started := make(chan struct{})
	op := s.Start("long", func(ctx context.Context, op *Operation) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	if !s.Cancel() {
		t.Error("expected Cancel to return true")
	}
	res := op.Wait()
	if res.Outcome != Cancelled {
		t.Errorf("expected cancelled, got %s", res.Outcome)
	}
	if s.Cancel() {
		t.Error("expected Cancel on finished operation to return false")
	}

	snap := op.Snapshot()
	if snap.Status != StatusCancelled || snap.Result == nil || snap.CompletedAt == nil {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestRun_ParentContextCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Run(ctx, "cancelled", func(ctx context.Context, op *Operation) (any, error) {
		return nil, ctx.Err()
	})
	if res.Outcome != Cancelled {
		t.Errorf("expected cancelled, got %s", res.Outcome)
	}
}

func TestProgressEvents(t *testing.T) {
	var observed []Progress
	s := New(WithObserver(func(p Progress) { observed = append(observed, p) }))

	proceed := make(chan struct{})
	op := s.Start("scan", func(ctx context.Context, op *Operation) (any, error) {
		<-proceed
		op.ReportIndeterminate("listing")
		op.Report(1, 2, "a.jpg")
		op.Report(2, 2, "b.jpg")
		return nil, nil
	})

	events := op.AddListener()
	close(proceed)
	op.Wait()

	var types []string
	for len(events) > 0 {
		// The started event may be sent before the listener is registered.
		if ev := <-events; ev.Type != EventStarted {
			types = append(types, ev.Type)
		}
	}
	want := []string{EventProgress, EventProgress, EventProgress, EventCompleted}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("expected events %v, got %v", want, types)
	}

	if len(observed) != 3 {
		t.Fatalf("expected 3 observed reports, got %d", len(observed))
	}
	if !observed[0].Indeterminate || observed[0].Operation != "scan" {
		t.Errorf("unexpected first report: %+v", observed[0])
	}
	if observed[2].Processed != 2 || observed[2].Total != 2 {
		t.Errorf("unexpected last report: %+v", observed[2])
	}
	if got := op.Snapshot().Progress; got.Message != "b.jpg" {
		t.Errorf("expected latest progress message b.jpg, got %q", got.Message)
	}
}

func TestEventBroadcaster(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()
	if b.ListenerCount() != 1 {
		t.Fatalf("expected 1 listener, got %d", b.ListenerCount())
	}

	b.SendEvent(Event{Type: EventProgress})
	if ev := <-ch; ev.Type != EventProgress {
		t.Errorf("expected progress event, got %s", ev.Type)
	}

	// A full listener must not block senders.
	for range 500 {
		b.SendEvent(Event{Type: EventProgress})
	}

	b.RemoveListener(ch)
	for range ch {
	}
	if b.ListenerCount() != 0 {
		t.Errorf("expected 0 listeners, got %d", b.ListenerCount())
	}
}

func TestGet(t *testing.T) {
	s := New()
	op := s.Start("a", func(ctx context.Context, op *Operation) (any, error) { return nil, nil })
	op.Wait()

	got, ok := s.Get(op.ID)
	if !ok || got != op {
		t.Fatal("expected operation to be found by ID")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing ID to be absent")
	}
}

func TestLibraryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".library-sorter.lock")

	t.Run("held for operation lifetime", func(t *testing.T) {
		s := New(WithLibraryLock(lockPath, time.Second))
		res := s.Run(context.Background(), "locked", func(ctx context.Context, op *Operation) (any, error) {
			other := flock.New(lockPath)
			ok, err := other.TryLock()
			if err != nil {
				return nil, err
			}
			if ok {
				other.Unlock()
				return nil, errors.New("lock was not held")
			}
			return nil, nil
		})
		if res.Outcome != Succeeded {
			t.Fatalf("expected success, got %s: %s", res.Outcome, res.Error)
		}
	})

	t.Run("timeout fails operation", func(t *testing.T) {
		other := flock.New(lockPath)
		if err := other.Lock(); err != nil {
			t.Fatalf("failed to lock: %v", err)
		}
		defer other.Unlock()

		s := New(WithLibraryLock(lockPath, 300*time.Millisecond))
		called := false
		res := s.Run(context.Background(), "blocked", func(ctx context.Context, op *Operation) (any, error) {
			called = true
			return nil, nil
		})
		if res.Outcome != Failed {
			t.Errorf("expected failure, got %s", res.Outcome)
		}
		if called {
			t.Error("expected operation body not to run")
		}
	})
}
