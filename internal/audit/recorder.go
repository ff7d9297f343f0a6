package audit

import (
	"context"
	"sync"
)

// queueSize bounds pending writes. Entries beyond it are dropped.
const queueSize = 256

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues audit entries and writes them serially from Run.
// Record never blocks the caller.
type Recorder struct {
	repo   Repository
	source string
	queue  chan *Entry
	logger Logger

	mu      sync.Mutex
	stopped bool
}

// NewRecorder creates a recorder writing to repo. source is stored on every
// entry.
func NewRecorder(repo Repository, source string) *Recorder {
	return &Recorder{
		repo:   repo,
		source: source,
		queue:  make(chan *Entry, queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record enqueues an entry. It is a no-op on a nil recorder.
func (r *Recorder) Record(action, entityType, entityID string, details map[string]any) {
	if r == nil {
		return
	}
	entry := &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     r.source,
		Details:    details,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry", "action", action, "entity_type", entityType)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			r.mu.Lock()
			r.stopped = true
			r.mu.Unlock()
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	// The caller's context may already be gone during the final drain.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit write failed", "action", entry.Action, "error", err)
	}
}
