package worker

import "errors"

// Domain errors for the worker bridge.
var (
	// ErrNoCandidates is returned when the launch list is empty.
	ErrNoCandidates = errors.New("worker: no launch candidates configured")

	// ErrHealthTimeout means a freshly started candidate did not answer the
	// health check in time.
	ErrHealthTimeout = errors.New("worker: health check timed out")

	// ErrRequestTimeout means a live worker did not answer a request in time.
	ErrRequestTimeout = errors.New("worker: request timed out")

	// ErrWorkerClosed is returned after Close.
	ErrWorkerClosed = errors.New("worker: bridge closed")

	// ErrMalformedReply means the worker wrote something other than one
	// JSON object per line, or closed its stdout.
	ErrMalformedReply = errors.New("worker: malformed reply")
)
