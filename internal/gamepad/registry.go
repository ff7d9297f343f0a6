package gamepad

import (
	"context"

	"github.com/gsmoverlay/input-server/internal/input"
	"github.com/gsmoverlay/input-server/internal/protocol"
)

// DeviceState is the tracked state of one gamepad. Every button code and
// axis name always has an entry.
type DeviceState struct {
	Label     string
	Connected bool
	Buttons   [NumButtons]bool
	Axes      map[AxisName]float64

	lastSent map[AxisName]axisSent
}

func newDeviceState(label string) *DeviceState {
	st := &DeviceState{
		Label:     label,
		Connected: true,
		Axes:      make(map[AxisName]float64, len(AllAxes)),
		lastSent:  make(map[AxisName]axisSent, len(AllAxes)),
	}
	for _, a := range AllAxes {
		st.Axes[a] = 0
	}
	return st
}

// DeviceSnapshot is a detached copy of a DeviceState.
type DeviceSnapshot struct {
	ID        input.DeviceID
	Label     string
	Connected bool
	Buttons   map[int]bool
	Axes      map[string]float64
}

func (s *DeviceState) snapshot(id input.DeviceID) DeviceSnapshot {
	snap := DeviceSnapshot{
		ID:        id,
		Label:     s.Label,
		Connected: s.Connected,
		Buttons:   make(map[int]bool, NumButtons),
		Axes:      make(map[string]float64, len(s.Axes)),
	}
	for code, pressed := range s.Buttons {
		snap.Buttons[code] = pressed
	}
	for name, v := range s.Axes {
		snap.Axes[string(name)] = v
	}
	return snap
}

// ConnectedMessage is the per-session announcement carrying full state.
func (d DeviceSnapshot) ConnectedMessage() protocol.GamepadConnected {
	return protocol.GamepadConnected{
		Device: d.Label,
		State:  &protocol.State{Buttons: d.Buttons, Axes: d.Axes},
	}
}

// StateMessage is the get_state reply for the device.
func (d DeviceSnapshot) StateMessage() protocol.GamepadState {
	return protocol.GamepadState{Device: d.Label, Buttons: d.Buttons, Axes: d.Axes}
}

// Registry holds the state of every device seen since startup.
//
// One exclusion guards all readers and writers. The polling goroutine
// acquires it with Update, which waits as long as needed; goroutines that
// must stay cancellable use UpdateContext and SnapshotContext. Callbacks
// must not publish or perform I/O: collect messages and send them after
// the callback returns.
//
// Entries are created on first sight and never removed.
type Registry struct {
	sem     chan struct{}
	devices map[input.DeviceID]*DeviceState
	order   []input.DeviceID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sem:     make(chan struct{}, 1),
		devices: make(map[input.DeviceID]*DeviceState),
	}
}

// Tx is the registry handle passed to Update callbacks. It is only valid
// inside the callback.
type Tx struct {
	r *Registry
}

// GetOrCreate returns the state of id, creating it (connected, all inputs
// at rest) with defaultLabel when absent.
func (tx *Tx) GetOrCreate(id input.DeviceID, defaultLabel string) *DeviceState {
	st, ok := tx.r.devices[id]
	if !ok {
		st = newDeviceState(defaultLabel)
		tx.r.devices[id] = st
		tx.r.order = append(tx.r.order, id)
	}
	return st
}

// Get returns the state of id if it exists.
func (tx *Tx) Get(id input.DeviceID) (*DeviceState, bool) {
	st, ok := tx.r.devices[id]
	return st, ok
}

// Each calls fn for every device in registration order.
func (tx *Tx) Each(fn func(id input.DeviceID, st *DeviceState)) {
	for _, id := range tx.r.order {
		fn(id, tx.r.devices[id])
	}
}

// Update runs fn with exclusive access, waiting for as long as needed.
func (r *Registry) Update(fn func(tx *Tx)) {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()
	fn(&Tx{r: r})
}

// UpdateContext runs fn with exclusive access, giving up if ctx ends
// before access is granted.
//
// Returns:
//   - error: ctx.Err() when fn was not run
func (r *Registry) UpdateContext(ctx context.Context, fn func(tx *Tx)) error {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.sem }()
	fn(&Tx{r: r})
	return nil
}

// Snapshot copies every device, connected or not, in registration order.
func (r *Registry) Snapshot() []DeviceSnapshot {
	var out []DeviceSnapshot
	r.Update(func(*Tx) { out = r.snapshotLocked() })
	return out
}

// SnapshotContext is Snapshot for cancellable callers.
func (r *Registry) SnapshotContext(ctx context.Context) ([]DeviceSnapshot, error) {
	var out []DeviceSnapshot
	err := r.UpdateContext(ctx, func(*Tx) { out = r.snapshotLocked() })
	return out, err
}

func (r *Registry) snapshotLocked() []DeviceSnapshot {
	out := make([]DeviceSnapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id].snapshot(id))
	}
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	var n int
	r.Update(func(*Tx) { n = len(r.order) })
	return n
}
