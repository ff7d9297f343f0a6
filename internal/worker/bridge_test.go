package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gsmoverlay/input-server/internal/protocol"
)

// TestHelperWorker is not a real test. The bridge tests re-execute the test
// binary with WORKER_HELPER_MODE set and it plays the worker.
func TestHelperWorker(t *testing.T) {
	mode := os.Getenv("WORKER_HELPER_MODE")
	if mode == "" {
		return
	}
	runHelperWorker(mode)
	os.Exit(0)
}

func helperArgs() []string {
	for i, a := range os.Args {
		if a == "--" {
			return os.Args[i+1:]
		}
	}
	return nil
}

func runHelperWorker(mode string) {
	if mode == "exit" {
		os.Exit(2)
	}

	// hang-once hangs on its first tokenize only in the first process that
	// claims the marker file.
	if mode == "hang-once" {
		marker := os.Getenv("WORKER_HELPER_MARKER")
		if f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600); err == nil {
			_ = f.Close()
			mode = "hang-request"
		} else {
			mode = "healthy"
		}
	}

	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req struct {
			Op   string `json:"op"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}

		if req.Op == "health" {
			if mode == "hang-health" {
				time.Sleep(time.Minute)
			}
			_ = out.Encode(map[string]any{"ok": true, "mecabAvailable": true})
			continue
		}

		switch mode {
		case "hang-request":
			time.Sleep(time.Minute)
		case "garbage":
			fmt.Println("this is not json")
		case "no-payload":
			_ = out.Encode(map[string]any{"mecabAvailable": true})
		case "bad-payload":
			_ = out.Encode(map[string]any{"mecabAvailable": true, "tokens": "oops", "segments": 7})
		case "inspect":
			word := strings.Join([]string{
				os.Getenv("PYTHONUTF8"),
				os.Getenv("PYTHONIOENCODING"),
				strings.Join(helperArgs(), " "),
			}, "|")
			_ = out.Encode(map[string]any{
				"mecabAvailable": false,
				"tokens":         []map[string]any{{"word": word, "start": 0, "end": 1}},
			})
		default:
			switch req.Op {
			case "tokenize":
				_ = out.Encode(map[string]any{
					"mecabAvailable": true,
					"tokens": []map[string]any{
						{"word": "日本", "start": 0, "end": 2, "reading": "ニホン"},
						{"word": "語", "start": 2, "end": 3},
					},
				})
			case "get_furigana":
				_ = out.Encode(map[string]any{
					"mecabAvailable": true,
					"segments": []map[string]any{
						{"text": "日本", "start": 0, "end": 2, "hasReading": true, "reading": "にほん"},
					},
				})
			}
		}
	}
}

func helperCandidate() LaunchSpec {
	return LaunchSpec{Binary: os.Args[0], Args: []string{"-test.run=TestHelperWorker", "--"}}
}

type attemptLog struct {
	mu       sync.Mutex
	attempts []string
}

func (a *attemptLog) record(c LaunchSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, c.Binary)
}

func (a *attemptLog) binaries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.attempts...)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveRequest(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, op+":"+outcome)
}

func (r *recordingObserver) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func newHelperBridge(t *testing.T, mode string, candidates ...LaunchSpec) (*Bridge, *attemptLog) {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []LaunchSpec{helperCandidate()}
	}
	log := &attemptLog{}
	b := NewBridge(Config{
		Script:         "bridge.py",
		Candidates:     candidates,
		HealthTimeout:  5 * time.Second,
		RequestTimeout: 5 * time.Second,
		Env: []string{
			"WORKER_HELPER_MODE=" + mode,
			"WORKER_HELPER_MARKER=" + filepath.Join(t.TempDir(), "marker"),
		},
		OnSpawnAttempt: log.record,
	})
	t.Cleanup(func() { _ = b.Close() })
	return b, log
}

func TestDefaultCandidates(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     []string
	}{
		{"no override", "", []string{"python", "py -3", "python3"}},
		{"blank override", "   ", []string{"python", "py -3", "python3"}},
		{"override first", "/opt/py/bin/python", []string{"/opt/py/bin/python", "python", "py -3", "python3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range DefaultCandidates(tt.override) {
				got = append(got, c.String())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DefaultCandidates(%q) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}

func TestBridge_EmptyTextSkipsWorker(t *testing.T) {
	b, log := newHelperBridge(t, "healthy")

	tok := b.Tokenize(context.Background(), "")
	if tok.Tokens == nil || len(tok.Tokens) != 0 || tok.Available {
		t.Errorf("Tokenize(\"\") = %+v, want empty non-nil tokens, unavailable", tok)
	}
	fur := b.Furigana(context.Background(), "")
	if fur.Segments == nil || len(fur.Segments) != 0 || fur.Available {
		t.Errorf("Furigana(\"\") = %+v, want empty non-nil segments, unavailable", fur)
	}
	if n := len(log.binaries()); n != 0 {
		t.Errorf("spawn attempts = %d, want 0", n)
	}
}

func TestBridge_HealthyWorker(t *testing.T) {
	b, _ := newHelperBridge(t, "healthy")

	tok := b.Tokenize(context.Background(), "日本語")
	want := []protocol.Token{
		{Word: "日本", Start: 0, End: 2, Reading: "ニホン"},
		{Word: "語", Start: 2, End: 3},
	}
	if !tok.Available {
		t.Error("Tokenize should report mecab available")
	}
	if !reflect.DeepEqual(tok.Tokens, want) {
		t.Errorf("Tokens = %+v, want %+v", tok.Tokens, want)
	}

	fur := b.Furigana(context.Background(), "日本")
	if !fur.Available || len(fur.Segments) != 1 {
		t.Fatalf("Furigana = %+v", fur)
	}
	seg := fur.Segments[0]
	if seg.Text != "日本" || !seg.HasReading || seg.Reading == nil || *seg.Reading != "にほん" {
		t.Errorf("segment = %+v", seg)
	}

	stats := b.Stats()
	if stats.State != StateHealthy || stats.Spawns != 1 || stats.PID == 0 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Requests != 2 || stats.Fallbacks != 0 {
		t.Errorf("requests/fallbacks = %d/%d, want 2/0", stats.Requests, stats.Fallbacks)
	}
}

func TestBridge_UptimeFollowsChild(t *testing.T) {
	b, _ := newHelperBridge(t, "healthy")
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first := b.Stats().Uptime
	time.Sleep(20 * time.Millisecond)
	if second := b.Stats().Uptime; second <= first || second < 20*time.Millisecond {
		t.Errorf("Uptime %v then %v, want growing", first, second)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if up := b.Stats().Uptime; up != 0 {
		t.Errorf("Uptime after Close = %v, want 0", up)
	}
}

func TestBridge_LaunchLine(t *testing.T) {
	b, _ := newHelperBridge(t, "inspect")

	tok := b.Tokenize(context.Background(), "x")
	if len(tok.Tokens) != 1 {
		t.Fatalf("Tokens = %+v", tok.Tokens)
	}
	want := "1|utf-8|-X utf8 -u bridge.py"
	if got := tok.Tokens[0].Word; got != want {
		t.Errorf("worker saw %q, want %q", got, want)
	}
	if tok.Available {
		t.Error("availability should come from the reply")
	}
}

func TestBridge_SkipsFailingCandidates(t *testing.T) {
	missing := LaunchSpec{Binary: "no-such-python-interpreter-xyz"}
	b, log := newHelperBridge(t, "healthy", missing, helperCandidate())

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	got := log.binaries()
	if len(got) != 2 || got[0] != missing.Binary || got[1] != os.Args[0] {
		t.Errorf("attempts = %v, want [missing, helper]", got)
	}
}

func TestBridge_AllCandidatesFail(t *testing.T) {
	b, _ := newHelperBridge(t, "exit")

	if err := b.Start(context.Background()); err == nil {
		t.Error("Start() should fail when every candidate exits")
	}

	tok := b.Tokenize(context.Background(), "a b")
	want := []protocol.Token{{Word: "a", Start: 0, End: 1}, {Word: "b", Start: 2, End: 3}}
	if !reflect.DeepEqual(tok.Tokens, want) || tok.Available {
		t.Errorf("Tokenize() = %+v, want fallback %+v", tok, want)
	}

	if s := b.Stats(); s.State != StateNoWorker || s.LastError == "" {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBridge_NoCandidates(t *testing.T) {
	b := NewBridge(Config{Script: "bridge.py"})
	if err := b.Start(context.Background()); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Start() error = %v, want ErrNoCandidates", err)
	}
}

func TestBridge_HealthTimeout(t *testing.T) {
	b, _ := newHelperBridge(t, "hang-health")
	b.cfg.HealthTimeout = 300 * time.Millisecond

	if err := b.Start(context.Background()); !errors.Is(err, ErrHealthTimeout) {
		t.Errorf("Start() error = %v, want ErrHealthTimeout", err)
	}
}

func TestBridge_MalformedReplyFallsBack(t *testing.T) {
	b, _ := newHelperBridge(t, "garbage")
	obs := &recordingObserver{}
	b.SetObserver(obs)

	fur := b.Furigana(context.Background(), "日本")
	want := FallbackSegments("日本")
	if !reflect.DeepEqual(fur.Segments, want) || fur.Available {
		t.Errorf("Furigana() = %+v, want fallback", fur)
	}
	if s := b.Stats(); s.State != StateNoWorker || s.Failures != 1 {
		t.Errorf("worker should be discarded, Stats() = %+v", s)
	}
	if got := obs.all(); !reflect.DeepEqual(got, []string{"get_furigana:error"}) {
		t.Errorf("observed = %v", got)
	}
}

func TestBridge_MissingPayloadKeepsAvailability(t *testing.T) {
	b, _ := newHelperBridge(t, "no-payload")

	tok := b.Tokenize(context.Background(), "語")
	if !tok.Available {
		t.Error("availability should come from the reply")
	}
	if !reflect.DeepEqual(tok.Tokens, FallbackTokens("語")) {
		t.Errorf("Tokens = %+v, want fallback", tok.Tokens)
	}
	if s := b.Stats(); s.State != StateHealthy {
		t.Errorf("worker should stay up, State = %s", s.State)
	}
}

func TestBridge_BadPayloadKeepsWorker(t *testing.T) {
	b, _ := newHelperBridge(t, "bad-payload")

	tok := b.Tokenize(context.Background(), "ab")
	if !reflect.DeepEqual(tok.Tokens, FallbackTokens("ab")) || !tok.Available {
		t.Errorf("Tokenize() = %+v", tok)
	}
	fur := b.Furigana(context.Background(), "ab")
	if !reflect.DeepEqual(fur.Segments, FallbackSegments("ab")) {
		t.Errorf("Furigana() = %+v", fur)
	}
	if s := b.Stats(); s.State != StateHealthy || s.Spawns != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBridge_RespawnAfterTimeout(t *testing.T) {
	missing := LaunchSpec{Binary: "no-such-python-interpreter-xyz"}
	b, log := newHelperBridge(t, "hang-once", missing, helperCandidate())
	b.cfg.RequestTimeout = 300 * time.Millisecond
	obs := &recordingObserver{}
	b.SetObserver(obs)

	first := b.Tokenize(context.Background(), "日本語")
	if first.Available || !reflect.DeepEqual(first.Tokens, FallbackTokens("日本語")) {
		t.Errorf("first Tokenize() = %+v, want fallback", first)
	}
	if s := b.Stats(); s.State != StateNoWorker {
		t.Errorf("State after timeout = %s, want %s", s.State, StateNoWorker)
	}

	b.cfg.RequestTimeout = 5 * time.Second
	second := b.Tokenize(context.Background(), "日本語")
	if !second.Available || len(second.Tokens) != 2 {
		t.Errorf("second Tokenize() = %+v, want worker result", second)
	}

	wantAttempts := []string{missing.Binary, os.Args[0], missing.Binary, os.Args[0]}
	if got := log.binaries(); !reflect.DeepEqual(got, wantAttempts) {
		t.Errorf("attempts = %v, want %v", got, wantAttempts)
	}
	if got := obs.all(); !reflect.DeepEqual(got, []string{"tokenize:timeout", "tokenize:ok"}) {
		t.Errorf("observed = %v", got)
	}
	if s := b.Stats(); s.Spawns != 2 {
		t.Errorf("Spawns = %d, want 2", s.Spawns)
	}
}

func TestBridge_ClosedFallsBack(t *testing.T) {
	b, log := newHelperBridge(t, "healthy")
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	fur := b.Furigana(context.Background(), "猫")
	if fur.Available || !reflect.DeepEqual(fur.Segments, FallbackSegments("猫")) {
		t.Errorf("Furigana() after Close = %+v", fur)
	}
	if len(log.binaries()) != 0 {
		t.Error("closed bridge should not spawn")
	}
	if s := b.Stats(); s.State != StateClosed {
		t.Errorf("State = %s, want %s", s.State, StateClosed)
	}
}

func TestBridge_CanceledContext(t *testing.T) {
	b, _ := newHelperBridge(t, "healthy")

	// Hold the bridge so the request has to wait.
	b.sem <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tok := b.Tokenize(ctx, "ab")
	b.release()

	if tok.Available || !reflect.DeepEqual(tok.Tokens, FallbackTokens("ab")) {
		t.Errorf("Tokenize() = %+v, want fallback", tok)
	}
}
