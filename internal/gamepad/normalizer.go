package gamepad

import (
	"time"

	"github.com/gsmoverlay/input-server/internal/input"
	"github.com/gsmoverlay/input-server/internal/protocol"
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

// Publisher receives encoded messages for broadcast.
type Publisher interface {
	Send(msg string) int
}

// Normalizer turns raw hardware events into registry updates and encoded
// outbound messages.
type Normalizer struct {
	cfg      Config
	registry *Registry
	logger   Logger
	now      func() time.Time
}

// NewNormalizer creates a normalizer writing to registry.
func NewNormalizer(cfg Config, registry *Registry) *Normalizer {
	return &Normalizer{
		cfg:      cfg,
		registry: registry,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the normalizer.
func (n *Normalizer) SetLogger(logger Logger) {
	n.logger = logger
}

// Register records devices that already exist at startup. Devices not yet
// in the registry are announced with gamepad_connected.
//
// Returns:
//   - []string: Encoded messages to broadcast
func (n *Normalizer) Register(devices []input.DeviceInfo) []string {
	var b batch
	n.registry.Update(func(tx *Tx) {
		for _, d := range devices {
			if _, ok := tx.Get(d.ID); ok {
				continue
			}
			st := tx.GetOrCreate(d.ID, d.Label)
			b.emit(protocol.GamepadConnected{Device: st.Label})
			b.log(levelInfo, "gamepad detected at startup", "device", st.Label)
		}
	})
	return b.flush(n.logger)
}

// Apply processes one raw event.
//
// The registry is updated under its exclusion. Log lines are written after
// it is released; the returned messages must be published by the caller
// afterwards, in order.
//
// Parameters:
//   - ev: Raw hardware event
//   - label: Current device label reported by the source
//
// Returns:
//   - []string: Encoded messages to broadcast (possibly none)
func (n *Normalizer) Apply(ev input.Event, label string) []string {
	now := n.now()
	var b batch

	n.registry.Update(func(tx *Tx) {
		st := tx.GetOrCreate(ev.Device, label)
		st.Label = label

		switch ev.Kind {
		case input.Connected:
			st.Connected = true
			b.emit(protocol.GamepadConnected{Device: label})
			b.log(levelInfo, "gamepad connected", "device", label)

		case input.Disconnected:
			st.Connected = false
			b.emit(protocol.GamepadDisconnected{Device: label})
			b.log(levelInfo, "gamepad disconnected", "device", label)

		case input.ButtonPressed, input.ButtonReleased:
			n.applyDigital(&b, st, ev)

		case input.ButtonChanged:
			n.applyAnalogButton(&b, st, ev)

		case input.AxisChanged:
			n.applyAxis(&b, st, ev, now)

		default:
			b.log(levelDebug, "ignored event", "device", label, "kind", ev.Kind)
		}
	})

	return b.flush(n.logger)
}

func (n *Normalizer) applyDigital(b *batch, st *DeviceState, ev input.Event) {
	code, ok := MapButton(ev.Button)
	if !ok {
		b.log(levelDebug, "unmapped button", "device", st.Label, "button", ev.Button, "code", ev.Code)
		return
	}
	pressed := ev.Kind == input.ButtonPressed

	var value *float64
	if code.IsTrigger() {
		v := 0.0
		if pressed {
			v = 1.0
		}
		st.Axes[triggerAxis(code)] = v
		value = &v
	}

	n.buttonEdge(b, st, code, pressed, value)
}

func (n *Normalizer) applyAnalogButton(b *batch, st *DeviceState, ev input.Event) {
	code, ok := MapButton(ev.Button)
	if !ok {
		b.log(levelDebug, "unmapped button change", "device", st.Label, "button", ev.Button, "value", ev.Value)
		return
	}

	var pressed bool
	var value *float64
	if code.IsTrigger() {
		pressed = ev.Value > n.cfg.TriggerThreshold
		v := NormalizeTrigger(ev.Value)
		st.Axes[triggerAxis(code)] = v
		value = &v
	} else {
		pressed = DigitalPressed(ev.Value)
	}

	n.buttonEdge(b, st, code, pressed, value)
}

func (n *Normalizer) applyAxis(b *batch, st *DeviceState, ev input.Event, now time.Time) {
	switch ev.Axis {
	case input.AxisDPadX:
		n.buttonEdge(b, st, ButtonDPadLeft, ev.Value < -0.5, nil)
		n.buttonEdge(b, st, ButtonDPadRight, ev.Value > 0.5, nil)
		return
	case input.AxisDPadY:
		n.buttonEdge(b, st, ButtonDPadUp, ev.Value < -0.5, nil)
		n.buttonEdge(b, st, ButtonDPadDown, ev.Value > 0.5, nil)
		return
	}

	axis, ok := MapAxis(ev.Axis)
	if !ok {
		b.log(levelDebug, "unmapped axis", "device", st.Label, "axis", ev.Axis, "code", ev.Code, "value", ev.Value)
		return
	}

	var value float64
	if axis.IsTrigger() {
		value = NormalizeTrigger(ev.Value)
	} else {
		value = NormalizeStick(ev.Value, n.cfg.Deadzone)
	}
	st.Axes[axis] = value

	// A trigger crossing its threshold is reported as a button edge in
	// place of the axis update.
	if axis.IsTrigger() {
		code := triggerButton(axis)
		pressed := value > n.cfg.TriggerThreshold
		if st.Buttons[code] != pressed {
			v := value
			n.buttonEdge(b, st, code, pressed, &v)
			return
		}
	}

	if !st.ShouldSendAxis(axis, value, n.cfg, now) {
		return
	}
	b.log(levelDebug, "axis event", "device", st.Label, "axis", axis, "value", value)
	b.emit(protocol.Axis{Device: st.Label, Axis: string(axis), Value: value})
}

// buttonEdge stores pressed and emits a button message when it changed.
func (n *Normalizer) buttonEdge(b *batch, st *DeviceState, code ButtonCode, pressed bool, value *float64) {
	if st.Buttons[code] == pressed {
		return
	}
	st.Buttons[code] = pressed

	b.log(levelInfo, "button event", "device", st.Label, "button", code.Name(), "pressed", pressed)
	b.emit(protocol.Button{
		Device:  st.Label,
		Button:  int(code),
		Pressed: pressed,
		Name:    code.Name(),
		Value:   value,
	})
}
