// Package supervisor runs long library operations one at a time and reports
// their progress and outcome.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/fslock"
)

// Status represents the lifecycle state of an operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Outcome is the final result of an operation.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	Cancelled Outcome = "cancelled"
)

// Progress is a single progress report.
type Progress struct {
	Operation     string `json:"operation"`
	Processed     int    `json:"processed"`
	Total         int    `json:"total"`
	Message       string `json:"message,omitempty"`
	Indeterminate bool   `json:"indeterminate"`
}

// Result is returned when an operation finishes.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
	Value   any     `json:"value,omitempty"`
}

// Func is the body of a supervised operation. It must return promptly once
// ctx is cancelled.
type Func func(ctx context.Context, op *Operation) (any, error)

// Operation is a single supervised run.
type Operation struct {
	EventBroadcaster

	ID   string
	Name string

	mu          sync.RWMutex
	status      Status
	progress    Progress
	result      Result
	startedAt   time.Time
	completedAt time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	observer func(Progress)
}

// Snapshot is a point-in-time copy of an operation's state.
type Snapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	Progress    Progress   `json:"progress"`
	Result      *Result    `json:"result,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Report publishes determinate progress.
func (o *Operation) Report(processed, total int, message string) {
	o.publish(Progress{Operation: o.Name, Processed: processed, Total: total, Message: message})
}

// ReportIndeterminate publishes progress for a phase with unknown length.
func (o *Operation) ReportIndeterminate(message string) {
	o.publish(Progress{Operation: o.Name, Message: message, Indeterminate: true})
}

func (o *Operation) publish(p Progress) {
	o.mu.Lock()
	o.progress = p
	observer := o.observer
	o.mu.Unlock()

	if observer != nil {
		observer(p)
	}
	o.SendEvent(Event{Type: EventProgress, Message: p.Message, Data: p})
}

// GetStatus returns the current status.
func (o *Operation) GetStatus() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Snapshot returns a copy of the operation's state.
func (o *Operation) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Snapshot{
		ID:        o.ID,
		Name:      o.Name,
		Status:    o.status,
		Progress:  o.progress,
		StartedAt: o.startedAt,
	}
	if o.status.Terminal() {
		r := o.result
		s.Result = &r
		t := o.completedAt
		s.CompletedAt = &t
	}
	return s
}

// Cancel requests cancellation. It does not wait.
func (o *Operation) Cancel() {
	o.cancel()
}

// Done is closed when the operation has finished.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation finishes and returns its result.
func (o *Operation) Wait() Result {
	<-o.done
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.result
}

// Supervisor allows at most one operation to run at a time.
type Supervisor struct {
	lockPath    string
	lockTimeout time.Duration

	mu       sync.Mutex
	current  *Operation
	history  map[string]*Operation
	order    []string
	observer func(Progress)
}

const historySize = 20

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLibraryLock makes every operation hold a file lock at path while it runs.
func WithLibraryLock(path string, timeout time.Duration) Option {
	return func(s *Supervisor) {
		s.lockPath = path
		s.lockTimeout = timeout
	}
}

// WithObserver registers a function called synchronously for every progress report.
func WithObserver(fn func(Progress)) Option {
	return func(s *Supervisor) {
		s.observer = fn
	}
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		lockTimeout: constants.LockTimeout,
		history:     make(map[string]*Operation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start cancels the current operation, waits for it to finish and starts fn
// in the background.
func (s *Supervisor) Start(name string, fn Func) *Operation {
	return s.start(context.Background(), name, fn)
}

// Run starts fn under ctx and blocks until it finishes.
func (s *Supervisor) Run(ctx context.Context, name string, fn Func) Result {
	return s.start(ctx, name, fn).Wait()
}

// Cancel cancels the current operation if one is running.
func (s *Supervisor) Cancel() bool {
	s.mu.Lock()
	op := s.current
	s.mu.Unlock()

	if op == nil || op.GetStatus().Terminal() {
		return false
	}
	op.Cancel()
	return true
}

// Current returns the most recently started operation, or nil.
func (s *Supervisor) Current() *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Get returns a recent operation by ID.
func (s *Supervisor) Get(id string) (*Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.history[id]
	return op, ok
}

func (s *Supervisor) start(parent context.Context, name string, fn Func) *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		prev.Cancel()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(parent)
	op := &Operation{
		ID:        uuid.New().String(),
		Name:      name,
		status:    StatusPending,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		observer:  s.observer,
	}
	s.current = op
	s.remember(op)

	go s.run(ctx, op, fn)
	return op
}

func (s *Supervisor) remember(op *Operation) {
	s.history[op.ID] = op
	s.order = append(s.order, op.ID)
	if len(s.order) > historySize {
		delete(s.history, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Supervisor) run(ctx context.Context, op *Operation, fn Func) {
	defer close(op.done)
	defer op.cancel()

	op.mu.Lock()
	op.status = StatusRunning
	op.mu.Unlock()
	op.SendEvent(Event{Type: EventStarted, Message: op.Name, Data: op.ID})

	var (
		value any
		err   error
	)
	if s.lockPath != "" {
		var release func()
		release, err = fslock.Acquire(ctx, s.lockPath, s.lockTimeout)
		if err == nil {
			defer release()
		} else if !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("acquiring library lock: %w", err)
		}
	}
	if err == nil {
		value, err = safeCall(ctx, op, fn)
	}

	result := classify(value, err)
	status := StatusSucceeded
	eventType := EventCompleted
	switch result.Outcome {
	case Failed:
		status = StatusFailed
		eventType = EventFailed
		log.Printf("Operation %s (%s) failed: %s", op.Name, op.ID, result.Error)
	case Cancelled:
		status = StatusCancelled
		eventType = EventCancelled
		log.Printf("Operation %s (%s) cancelled", op.Name, op.ID)
	default:
		log.Printf("Operation %s (%s) completed", op.Name, op.ID)
	}

	op.mu.Lock()
	op.status = status
	op.result = result
	op.completedAt = time.Now()
	op.mu.Unlock()

	op.SendEvent(Event{Type: eventType, Message: result.Error, Data: result})
}

func safeCall(ctx context.Context, op *Operation, fn Func) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return fn(ctx, op)
}

func classify(value any, err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: Succeeded, Value: value}
	case errors.Is(err, context.Canceled):
		return Result{Outcome: Cancelled, Value: value}
	default:
		return Result{Outcome: Failed, Error: err.Error(), Value: value}
	}
}
