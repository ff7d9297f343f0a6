package gamepad

import (
	"math"
	"time"
)

// Config holds the normalization constants. It is immutable once the
// normalizer and repeater are built.
type Config struct {
	Deadzone               float64
	TriggerThreshold       float64
	AxisEpsilon            float64
	AxisMinInterval        time.Duration
	AxisHoldRepeatInterval time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		Deadzone:               0.15,
		TriggerThreshold:       0.5,
		AxisEpsilon:            0.02,
		AxisMinInterval:        time.Second / 120,
		AxisHoldRepeatInterval: time.Second / 60,
	}
}

// NormalizeStick zeroes readings inside the deadzone and clamps the rest
// to [-1, 1].
func NormalizeStick(raw, deadzone float64) float64 {
	if math.IsNaN(raw) || math.Abs(raw) < deadzone {
		return 0
	}
	return clamp(raw, -1, 1)
}

// NormalizeTrigger maps a trigger reading to [0, 1]. Readings already in
// [0, 1] pass through; anything else is treated as a [-1, 1] range.
func NormalizeTrigger(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	if raw >= 0 && raw <= 1 {
		return raw
	}
	return clamp((raw+1)/2, 0, 1)
}

// DigitalPressed is the press rule for analog changes on non-trigger buttons.
func DigitalPressed(value float64) bool {
	return value >= 0.5
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// axisSent records the last value broadcast for an axis.
type axisSent struct {
	value float64
	at    time.Time
}

// ShouldSendAxis decides whether a new axis value is broadcast.
//
// A value is sent when the axis was never sent, when it moved at least
// AxisEpsilon from the last sent value, or when AxisMinInterval has passed
// since the last send. Every positive decision records (value, now).
func (s *DeviceState) ShouldSendAxis(axis AxisName, value float64, cfg Config, now time.Time) bool {
	if prev, ok := s.lastSent[axis]; ok {
		if math.Abs(value-prev.value) < cfg.AxisEpsilon && now.Sub(prev.at) < cfg.AxisMinInterval {
			return false
		}
	}
	s.lastSent[axis] = axisSent{value: value, at: now}
	return true
}
