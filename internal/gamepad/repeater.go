package gamepad

import (
	"context"
	"math"
	"time"

	"github.com/gsmoverlay/input-server/internal/input"
	"github.com/gsmoverlay/input-server/internal/protocol"
)

// Repeater re-broadcasts sticks held away from center so subscribers keep
// receiving movement while the hardware reports no change.
type Repeater struct {
	cfg      Config
	registry *Registry
	pub      Publisher
	logger   Logger
	now      func() time.Time
}

// NewRepeater creates a repeater ticking at cfg.AxisHoldRepeatInterval.
func NewRepeater(cfg Config, registry *Registry, pub Publisher) *Repeater {
	return &Repeater{
		cfg:      cfg,
		registry: registry,
		pub:      pub,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the repeater.
func (r *Repeater) SetLogger(logger Logger) {
	r.logger = logger
}

// Run ticks until ctx is cancelled. It always returns nil.
func (r *Repeater) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.AxisHoldRepeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msgs, err := r.collect(ctx)
			if err != nil {
				return nil
			}
			for _, m := range msgs {
				r.pub.Send(m)
			}
		}
	}
}

// collect gathers the axis messages for one tick under the registry
// exclusion.
func (r *Repeater) collect(ctx context.Context) ([]string, error) {
	now := r.now()
	var b batch

	err := r.registry.UpdateContext(ctx, func(tx *Tx) {
		tx.Each(func(_ input.DeviceID, st *DeviceState) {
			if !st.Connected {
				return
			}
			for _, axis := range StickAxes {
				v := st.Axes[axis]
				if math.Abs(v) < r.cfg.Deadzone {
					continue
				}
				if !st.ShouldSendAxis(axis, v, r.cfg, now) {
					continue
				}
				b.emit(protocol.Axis{Device: st.Label, Axis: string(axis), Value: v})
			}
		})
	})
	return b.flush(r.logger), err
}
