package gamepad

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/gsmoverlay/input-server/internal/input"
)

// idleBackoff is the pause after a source error before polling again.
const idleBackoff = 2 * time.Millisecond

// Poller drives a hardware source through the normalizer into a publisher.
type Poller struct {
	source     input.Source
	normalizer *Normalizer
	pub        Publisher
	logger     Logger
}

// NewPoller creates a poller.
func NewPoller(source input.Source, normalizer *Normalizer, pub Publisher) *Poller {
	return &Poller{
		source:     source,
		normalizer: normalizer,
		pub:        pub,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// Run announces the devices present at startup, then pulls events until
// ctx is cancelled or the source is closed.
//
// Run occupies its goroutine's OS thread for the whole loop, since some
// hardware backends require all reads to come from one thread.
//
// Returns:
//   - error: nil on cancellation or source close
func (p *Poller) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.publish(p.normalizer.Register(p.source.Devices()))

	for {
		ev, err := p.source.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, input.ErrClosed) {
				return nil
			}
			p.logger.Warn("reading gamepad event", "error", err)
			time.Sleep(idleBackoff)
			continue
		}

		p.publish(p.normalizer.Apply(ev, p.source.Label(ev.Device)))
	}
}

func (p *Poller) publish(msgs []string) {
	for _, m := range msgs {
		p.pub.Send(m)
	}
}
