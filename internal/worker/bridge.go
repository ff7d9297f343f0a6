package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gsmoverlay/input-server/internal/process"
	"github.com/gsmoverlay/input-server/internal/protocol"
)

// Default timeouts.
const (
	DefaultHealthTimeout  = 3 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Request outcomes reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// State is the bridge's worker lifecycle state.
type State string

const (
	StateNoWorker State = "no_worker"
	StateSpawning State = "spawning"
	StateHealthy  State = "healthy"
	StateClosed   State = "closed"
	StateDisabled State = "disabled"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives one call per tokenize or furigana request.
type Observer interface {
	ObserveRequest(op, outcome string, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, string, time.Duration) {}

// LaunchSpec is one way of starting the interpreter.
type LaunchSpec struct {
	Binary string
	Args   []string
}

func (l LaunchSpec) String() string {
	return strings.TrimSpace(l.Binary + " " + strings.Join(l.Args, " "))
}

// DefaultCandidates returns the interpreter launch order. A non-blank
// override is tried first.
func DefaultCandidates(override string) []LaunchSpec {
	var out []LaunchSpec
	if o := strings.TrimSpace(override); o != "" {
		out = append(out, LaunchSpec{Binary: o})
	}
	return append(out,
		LaunchSpec{Binary: "python"},
		LaunchSpec{Binary: "py", Args: []string{"-3"}},
		LaunchSpec{Binary: "python3"},
	)
}

// Config holds the bridge settings.
type Config struct {
	// Script is the worker script passed to the interpreter.
	Script string

	// Candidates are tried in order on every spawn.
	Candidates []LaunchSpec

	HealthTimeout  time.Duration
	RequestTimeout time.Duration

	// Env is appended to the worker's environment after the UTF-8 settings.
	Env []string

	// Lifecycle hooks. All are optional and run with the bridge held.
	OnSpawnAttempt func(candidate LaunchSpec)
	OnStart        func(candidate LaunchSpec, pid int)
	OnFailure      func(err error)
}

// Stats is a point-in-time view of the bridge.
type Stats struct {
	State          State         `json:"state"`
	PID            int           `json:"pid,omitempty"`
	Candidate      string        `json:"candidate,omitempty"`
	MecabAvailable bool          `json:"mecab_available"`
	Uptime         time.Duration `json:"uptime_ns,omitempty"`
	Spawns         uint64        `json:"spawns"`
	Failures       uint64        `json:"failures"`
	Requests       uint64        `json:"requests"`
	Fallbacks      uint64        `json:"fallbacks"`
	LastError      string        `json:"last_error,omitempty"`

	live *process.Child
}

// TokenizeResult is the outcome of Tokenize. Tokens is never nil.
type TokenizeResult struct {
	Tokens    []protocol.Token
	Available bool
}

// FuriganaResult is the outcome of Furigana. Segments is never nil.
type FuriganaResult struct {
	Segments  []protocol.Segment
	Available bool
}

// Bridge supervises at most one worker process and serializes requests to
// it. A failed worker is discarded and the next request spawns a new one,
// walking the candidate list from the start.
//
// Tokenize and Furigana never fail: they fall back to a local result when
// the worker is unavailable.
//
// Thread Safety:
//   - All methods are safe for concurrent use. One request is in flight at
//     a time.
type Bridge struct {
	cfg      Config
	sem      chan struct{}
	child    *process.Child
	closed   bool
	logger   Logger
	observer Observer

	statsMu sync.Mutex
	stats   Stats
}

// NewBridge creates a bridge. No process is started until Start or the
// first request.
func NewBridge(cfg Config) *Bridge {
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Bridge{
		cfg:      cfg,
		sem:      make(chan struct{}, 1),
		logger:   noopLogger{},
		observer: noopObserver{},
		stats:    Stats{State: StateNoWorker},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// SetObserver sets the request observer.
func (b *Bridge) SetObserver(o Observer) {
	b.observer = o
}

func (b *Bridge) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) release() {
	<-b.sem
}

// Start spawns a worker if none is running.
//
// Returns:
//   - error: The last candidate's failure when none became healthy
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return b.ensure()
}

// Close kills the worker. Later requests fall back immediately.
func (b *Bridge) Close() error {
	b.sem <- struct{}{}
	defer b.release()

	b.closed = true
	var err error
	if b.child != nil {
		err = b.child.Kill()
		b.child = nil
	}
	b.updateStats(func(s *Stats) {
		s.State = StateClosed
		s.PID = 0
		s.live = nil
		s.Candidate = ""
	})
	return err
}

// Stats returns a snapshot of the bridge counters. It does not wait for an
// in-flight request.
func (b *Bridge) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	s := b.stats
	if s.State == StateHealthy && s.live != nil {
		s.Uptime = s.live.Uptime()
	}
	s.live = nil
	return s
}

func (b *Bridge) updateStats(fn func(*Stats)) {
	b.statsMu.Lock()
	fn(&b.stats)
	b.statsMu.Unlock()
}

// Tokenize splits text into tokens through the worker.
func (b *Bridge) Tokenize(ctx context.Context, text string) TokenizeResult {
	if text == "" {
		return TokenizeResult{Tokens: []protocol.Token{}}
	}

	start := time.Now()
	r, err := b.request(ctx, opTokenize, text)
	if err != nil {
		b.finish(opTokenize, outcomeOf(err), start, true)
		return TokenizeResult{Tokens: FallbackTokens(text)}
	}

	res := TokenizeResult{Available: r.available()}
	tokens, ok, err := payload[protocol.Token](r, "tokens")
	if err != nil {
		b.logger.Warn("worker tokens unusable, using fallback", "error", err)
	}
	if !ok {
		res.Tokens = FallbackTokens(text)
		b.finish(opTokenize, OutcomeFallback, start, true)
		return res
	}
	res.Tokens = tokens
	b.finish(opTokenize, OutcomeOK, start, false)
	return res
}

// Furigana computes reading segments for text through the worker.
func (b *Bridge) Furigana(ctx context.Context, text string) FuriganaResult {
	if text == "" {
		return FuriganaResult{Segments: []protocol.Segment{}}
	}

	start := time.Now()
	r, err := b.request(ctx, opGetFurigana, text)
	if err != nil {
		b.finish(opGetFurigana, outcomeOf(err), start, true)
		return FuriganaResult{Segments: FallbackSegments(text)}
	}

	res := FuriganaResult{Available: r.available()}
	segments, ok, err := payload[protocol.Segment](r, "segments")
	if err != nil {
		b.logger.Warn("worker segments unusable, using fallback", "error", err)
	}
	if !ok {
		res.Segments = FallbackSegments(text)
		b.finish(opGetFurigana, OutcomeFallback, start, true)
		return res
	}
	res.Segments = segments
	b.finish(opGetFurigana, OutcomeOK, start, false)
	return res
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrRequestTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrWorkerClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeFallback
	default:
		return OutcomeError
	}
}

func (b *Bridge) finish(op, outcome string, start time.Time, fallback bool) {
	b.updateStats(func(s *Stats) {
		s.Requests++
		if fallback {
			s.Fallbacks++
		}
	})
	b.observer.ObserveRequest(op, outcome, time.Since(start))
}

// request runs one exchange, spawning a worker first when needed. Any
// failure of a live worker discards it.
func (b *Bridge) request(ctx context.Context, op, text string) (reply, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	if err := b.ensure(); err != nil {
		b.logger.Warn("worker unavailable", "op", op, "error", err)
		return nil, err
	}

	r, err := exchange(b.child, request{Op: op, Text: text}, b.cfg.RequestTimeout, ErrRequestTimeout)
	if err != nil {
		b.logger.Warn("worker request failed", "op", op, "error", err)
		b.discard(err)
		return nil, err
	}
	return r, nil
}

// ensure must be called with the bridge held.
func (b *Bridge) ensure() error {
	if b.closed {
		return ErrWorkerClosed
	}
	if b.child != nil {
		select {
		case <-b.child.Exited():
			b.discard(fmt.Errorf("worker exited: %v", b.child.ExitErr()))
		default:
			return nil
		}
	}
	return b.spawn()
}

// discard kills the live worker and records err. Called with the bridge held.
func (b *Bridge) discard(err error) {
	if b.child != nil {
		if kerr := b.child.Kill(); kerr != nil {
			b.logger.Debug("killing worker", "error", kerr)
		}
		b.child = nil
	}
	b.updateStats(func(s *Stats) {
		s.State = StateNoWorker
		s.PID = 0
		s.live = nil
		s.Candidate = ""
		s.MecabAvailable = false
		s.Failures++
		s.LastError = err.Error()
	})
	if b.cfg.OnFailure != nil {
		b.cfg.OnFailure(err)
	}
}

// spawn walks the candidate list until one passes the health check. Called
// with the bridge held.
func (b *Bridge) spawn() error {
	if len(b.cfg.Candidates) == 0 {
		b.recordSpawnFailure(ErrNoCandidates)
		return ErrNoCandidates
	}
	b.updateStats(func(s *Stats) { s.State = StateSpawning })

	var lastErr error
	for _, candidate := range b.cfg.Candidates {
		if b.cfg.OnSpawnAttempt != nil {
			b.cfg.OnSpawnAttempt(candidate)
		}

		child, avail, err := b.launch(candidate)
		if err != nil {
			b.logger.Debug("worker candidate failed", "candidate", candidate.String(), "error", err)
			lastErr = fmt.Errorf("%s: %w", candidate, err)
			continue
		}

		b.child = child
		b.logger.Info("worker started",
			"candidate", candidate.String(),
			"pid", child.PID(),
			"mecab_available", avail,
		)
		b.updateStats(func(s *Stats) {
			s.State = StateHealthy
			s.PID = child.PID()
			s.Candidate = candidate.String()
			s.MecabAvailable = avail
			s.Spawns++
			s.live = child
		})
		if b.cfg.OnStart != nil {
			b.cfg.OnStart(candidate, child.PID())
		}
		return nil
	}

	b.recordSpawnFailure(lastErr)
	return lastErr
}

func (b *Bridge) recordSpawnFailure(err error) {
	b.updateStats(func(s *Stats) {
		s.State = StateNoWorker
		s.Failures++
		s.LastError = err.Error()
	})
	if b.cfg.OnFailure != nil {
		b.cfg.OnFailure(err)
	}
}

// launch starts one candidate and health-checks it.
func (b *Bridge) launch(candidate LaunchSpec) (*process.Child, bool, error) {
	args := make([]string, 0, len(candidate.Args)+4)
	args = append(args, candidate.Args...)
	args = append(args, "-X", "utf8", "-u", b.cfg.Script)

	env := append([]string{"PYTHONUTF8=1", "PYTHONIOENCODING=utf-8"}, b.cfg.Env...)

	child, err := process.Start(process.Options{
		Name:   candidate.String(),
		Binary: candidate.Binary,
		Args:   args,
		Env:    env,
	})
	if err != nil {
		return nil, false, err
	}

	r, err := exchange(child, request{Op: opHealth}, b.cfg.HealthTimeout, ErrHealthTimeout)
	if err != nil {
		_ = child.Kill()
		return nil, false, err
	}
	return child, r.available(), nil
}
