package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gsmoverlay/input-server/internal/process"
)

// Worker operations.
const (
	opHealth      = "health"
	opTokenize    = "tokenize"
	opGetFurigana = "get_furigana"
)

// request is one line written to the worker's stdin.
type request struct {
	Op   string `json:"op"`
	Text string `json:"text,omitempty"`
}

// reply is one decoded line from the worker's stdout. Fields are kept raw
// so a bad payload field does not invalidate the whole reply.
type reply map[string]json.RawMessage

// available reports the reply's mecabAvailable flag, false when absent or
// not a boolean.
func (r reply) available() bool {
	var v bool
	if raw, ok := r["mecabAvailable"]; ok {
		if err := json.Unmarshal(raw, &v); err != nil {
			return false
		}
	}
	return v
}

// payload decodes the array stored under key.
//
// Returns:
//   - []T: The decoded array (never nil when ok)
//   - bool: False when the key is absent or null
//   - error: When the key is present but is not an array of T
func payload[T any](r reply, key string) ([]T, bool, error) {
	raw, ok := r[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, true, nil
}

type exchangeResult struct {
	reply reply
	err   error
}

// exchange writes req as one line and reads one reply line, giving up after
// timeout. On timeout the pending goroutine is released only when the
// caller kills the child.
func exchange(child *process.Child, req request, timeout time.Duration, timeoutErr error) (reply, error) {
	done := make(chan exchangeResult, 1)
	go func() {
		r, err := roundTrip(child, req)
		done <- exchangeResult{reply: r, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-timer.C:
		return nil, timeoutErr
	}
}

func roundTrip(child *process.Child, req request) (reply, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	line = append(line, '\n')
	if _, err := child.Stdin().Write(line); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	raw, err := child.Stdout().ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(bytes.TrimSpace(raw)) == 0 {
			return nil, fmt.Errorf("%w: worker closed stdout", ErrMalformedReply)
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading reply: %w", err)
		}
	}

	var r reply
	if err := json.Unmarshal(bytes.TrimSpace(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: reply is not an object", ErrMalformedReply)
	}
	return r, nil
}
