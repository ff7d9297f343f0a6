package input

import "strings"

// Linux joystick API event types.
const (
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80
)

// Linux input event codes reported through JSIOCGBTNMAP and JSIOCGAXMAP.
const (
	btnSouth  = 0x130 // BTN_A
	btnEast   = 0x131 // BTN_B
	btnX      = 0x133 // BTN_NORTH alias, the left face button on Xbox layouts
	btnY      = 0x134 // BTN_WEST alias, the top face button on Xbox layouts
	btnTL     = 0x136
	btnTR     = 0x137
	btnTL2    = 0x138
	btnTR2    = 0x139
	btnSelect = 0x13a
	btnStart  = 0x13b
	btnMode   = 0x13c
	btnThumbL = 0x13d
	btnThumbR = 0x13e

	btnDPadUp    = 0x220
	btnDPadDown  = 0x221
	btnDPadLeft  = 0x222
	btnDPadRight = 0x223

	absX     = 0x00
	absY     = 0x01
	absZ     = 0x02
	absRX    = 0x03
	absRY    = 0x04
	absRZ    = 0x05
	absGas   = 0x09
	absBrake = 0x0a
	absHat0X = 0x10
	absHat0Y = 0x11
)

// Sizes of the driver's index→code maps.
const (
	absCount    = 64
	btnMapCount = 512
)

// jsEvent mirrors struct js_event from linux/joystick.h.
type jsEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

// buttonFromCode maps a Linux key code to a positional button.
func buttonFromCode(code uint16) Button {
	switch code {
	case btnSouth:
		return ButtonSouth
	case btnEast:
		return ButtonEast
	case btnX:
		return ButtonWest
	case btnY:
		return ButtonNorth
	case btnTL:
		return ButtonLeftTrigger
	case btnTR:
		return ButtonRightTrigger
	case btnTL2:
		return ButtonLeftTrigger2
	case btnTR2:
		return ButtonRightTrigger2
	case btnSelect:
		return ButtonSelect
	case btnStart:
		return ButtonStart
	case btnMode:
		return ButtonMode
	case btnThumbL:
		return ButtonLeftThumb
	case btnThumbR:
		return ButtonRightThumb
	case btnDPadUp:
		return ButtonDPadUp
	case btnDPadDown:
		return ButtonDPadDown
	case btnDPadLeft:
		return ButtonDPadLeft
	case btnDPadRight:
		return ButtonDPadRight
	default:
		return ButtonUnknown
	}
}

// axisFromCode maps a Linux absolute axis code to an axis.
func axisFromCode(code uint8) Axis {
	switch code {
	case absX:
		return AxisLeftStickX
	case absY:
		return AxisLeftStickY
	case absRX:
		return AxisRightStickX
	case absRY:
		return AxisRightStickY
	case absZ, absBrake:
		return AxisLeftZ
	case absRZ, absGas:
		return AxisRightZ
	case absHat0X:
		return AxisDPadX
	case absHat0Y:
		return AxisDPadY
	default:
		return AxisUnknown
	}
}

// axisValue scales a joystick API axis reading to [-1, 1].
func axisValue(raw int16) float64 {
	v := float64(raw) / 32767
	if v < -1 {
		return -1
	}
	return v
}

// joystickMaps holds a device's driver index→code tables.
type joystickMaps struct {
	axes    [absCount]uint8
	buttons [btnMapCount]uint16
	nAxes   uint8
	nBtns   uint8
}

// decode converts a js_event into an Event. The second result is false for
// events of unknown type or with an index outside the device's maps.
func (m *joystickMaps) decode(id DeviceID, e jsEvent) (Event, bool) {
	switch e.Type &^ jsEventInit {
	case jsEventButton:
		if e.Number >= m.nBtns {
			return Event{}, false
		}
		code := m.buttons[e.Number]
		kind := ButtonReleased
		if e.Value != 0 {
			kind = ButtonPressed
		}
		return Event{Device: id, Kind: kind, Button: buttonFromCode(code), Code: code}, true
	case jsEventAxis:
		if e.Number >= m.nAxes {
			return Event{}, false
		}
		code := m.axes[e.Number]
		return Event{
			Device: id,
			Kind:   AxisChanged,
			Axis:   axisFromCode(code),
			Value:  axisValue(e.Value),
			Code:   uint16(code),
		}, true
	default:
		return Event{}, false
	}
}

// isJoystickNode reports whether a /dev/input entry is a joystick API node.
func isJoystickNode(name string) bool {
	return strings.HasPrefix(name, "js") && len(name) > 2
}

// cString trims a NUL-padded ioctl string buffer.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
