package gamepad

import (
	"math"
	"testing"
	"time"
)

func TestNormalizeStick(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{raw: 0.10, want: 0},
		{raw: -0.149, want: 0},
		{raw: 0.15, want: 0.15},
		{raw: 0.6, want: 0.6},
		{raw: -0.6, want: -0.6},
		{raw: 1.3, want: 1},
		{raw: -1.3, want: -1},
		{raw: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		if got := NormalizeStick(tt.raw, 0.15); got != tt.want {
			t.Errorf("NormalizeStick(%v, 0.15) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeTrigger(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{raw: 0, want: 0},
		{raw: 0.3, want: 0.3},
		{raw: 1, want: 1},
		{raw: -1, want: 0},
		{raw: -0.5, want: 0.25},
		{raw: 1.5, want: 1},
		{raw: -3, want: 0},
	}

	for _, tt := range tests {
		if got := NormalizeTrigger(tt.raw); got != tt.want {
			t.Errorf("NormalizeTrigger(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestDigitalPressed(t *testing.T) {
	if DigitalPressed(0.49) {
		t.Error("DigitalPressed(0.49) = true, want false")
	}
	if !DigitalPressed(0.5) {
		t.Error("DigitalPressed(0.5) = false, want true")
	}
}

func TestShouldSendAxis(t *testing.T) {
	cfg := DefaultConfig()
	st := newDeviceState("Pad1")
	t0 := time.Now()

	steps := []struct {
		name  string
		value float64
		at    time.Duration
		want  bool
	}{
		{name: "first send", value: 0.10, at: 0, want: true},
		{name: "small change too soon", value: 0.11, at: time.Millisecond, want: false},
		{name: "large change", value: 0.13, at: 2 * time.Millisecond, want: true},
		{name: "interval elapsed", value: 0.13, at: 20 * time.Millisecond, want: true},
		{name: "same value too soon", value: 0.13, at: 21 * time.Millisecond, want: false},
	}

	for _, s := range steps {
		if got := st.ShouldSendAxis(AxisLeftX, s.value, cfg, t0.Add(s.at)); got != s.want {
			t.Errorf("%s: ShouldSendAxis(%v at +%v) = %v, want %v", s.name, s.value, s.at, got, s.want)
		}
	}
}

func TestShouldSendAxis_SuppressedValueKeepsBaseline(t *testing.T) {
	cfg := DefaultConfig()
	st := newDeviceState("Pad1")
	t0 := time.Now()

	st.ShouldSendAxis(AxisLeftX, 0.10, cfg, t0)

	// The suppressed 0.11 does not move the baseline, so 0.13 is compared
	// against 0.10.
	if st.ShouldSendAxis(AxisLeftX, 0.11, cfg, t0.Add(time.Millisecond)) {
		t.Error("0.11 after 1ms should be suppressed")
	}
	if !st.ShouldSendAxis(AxisLeftX, 0.13, cfg, t0.Add(2*time.Millisecond)) {
		t.Error("0.13 should be sent")
	}

	st2 := newDeviceState("Pad1")
	st2.ShouldSendAxis(AxisLeftX, 0.10, cfg, t0)
	if !st2.ShouldSendAxis(AxisLeftX, 0.10, cfg, t0.Add(20*time.Millisecond)) {
		t.Error("unchanged value after 20ms should be sent")
	}
}

func TestShouldSendAxis_PerAxis(t *testing.T) {
	cfg := DefaultConfig()
	st := newDeviceState("Pad1")
	now := time.Now()

	st.ShouldSendAxis(AxisLeftX, 0.5, cfg, now)
	if !st.ShouldSendAxis(AxisLeftY, 0.5, cfg, now) {
		t.Error("left_y has no prior send and should be sent")
	}
}

func TestButtonCode_Name(t *testing.T) {
	tests := map[ButtonCode]string{
		ButtonA:         "A",
		ButtonLT:        "LT",
		ButtonBack:      "BACK",
		ButtonDPadRight: "DPAD_RIGHT",
		ButtonGuide:     "GUIDE",
		ButtonCode(40):  "UNKNOWN",
	}
	for code, want := range tests {
		if got := code.Name(); got != want {
			t.Errorf("ButtonCode(%d).Name() = %q, want %q", code, got, want)
		}
	}
	if NumButtons != 17 {
		t.Errorf("NumButtons = %d, want 17", NumButtons)
	}
}
