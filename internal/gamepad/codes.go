package gamepad

import "github.com/gsmoverlay/input-server/internal/input"

// ButtonCode is the overlay's stable numeric button identifier.
type ButtonCode uint8

const (
	ButtonA ButtonCode = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLB
	ButtonRB
	ButtonLT
	ButtonRT
	ButtonBack
	ButtonStart
	ButtonLS
	ButtonRS
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
	ButtonGuide

	// NumButtons is the number of button codes (0..16).
	NumButtons = int(ButtonGuide) + 1
)

var buttonNames = [NumButtons]string{
	"A", "B", "X", "Y", "LB", "RB", "LT", "RT", "BACK", "START", "LS", "RS",
	"DPAD_UP", "DPAD_DOWN", "DPAD_LEFT", "DPAD_RIGHT", "GUIDE",
}

// Name returns the wire name of the button ("A", "DPAD_UP", ...).
func (c ButtonCode) Name() string {
	if int(c) < NumButtons {
		return buttonNames[c]
	}
	return "UNKNOWN"
}

// IsTrigger reports whether c is LT or RT.
func (c ButtonCode) IsTrigger() bool {
	return c == ButtonLT || c == ButtonRT
}

// AxisName is the wire name of an axis.
type AxisName string

const (
	AxisLeftX  AxisName = "left_x"
	AxisLeftY  AxisName = "left_y"
	AxisRightX AxisName = "right_x"
	AxisRightY AxisName = "right_y"
	AxisLT     AxisName = "lt"
	AxisRT     AxisName = "rt"
)

// AllAxes lists every axis a DeviceState tracks.
var AllAxes = [...]AxisName{AxisLeftX, AxisLeftY, AxisRightX, AxisRightY, AxisLT, AxisRT}

// StickAxes are the axes the hold repeater re-sends.
var StickAxes = [...]AxisName{AxisLeftX, AxisLeftY, AxisRightX, AxisRightY}

// IsTrigger reports whether a is lt or rt.
func (a AxisName) IsTrigger() bool {
	return a == AxisLT || a == AxisRT
}

// triggerAxis returns the axis backing a trigger button.
func triggerAxis(c ButtonCode) AxisName {
	if c == ButtonLT {
		return AxisLT
	}
	return AxisRT
}

// triggerButton returns the button backed by a trigger axis.
func triggerButton(a AxisName) ButtonCode {
	if a == AxisLT {
		return ButtonLT
	}
	return ButtonRT
}

// MapButton maps a positional hardware button to its code.
func MapButton(b input.Button) (ButtonCode, bool) {
	switch b {
	case input.ButtonSouth:
		return ButtonA, true
	case input.ButtonEast:
		return ButtonB, true
	case input.ButtonWest:
		return ButtonX, true
	case input.ButtonNorth:
		return ButtonY, true
	case input.ButtonLeftTrigger:
		return ButtonLB, true
	case input.ButtonRightTrigger:
		return ButtonRB, true
	case input.ButtonLeftTrigger2:
		return ButtonLT, true
	case input.ButtonRightTrigger2:
		return ButtonRT, true
	case input.ButtonSelect:
		return ButtonBack, true
	case input.ButtonStart:
		return ButtonStart, true
	case input.ButtonLeftThumb:
		return ButtonLS, true
	case input.ButtonRightThumb:
		return ButtonRS, true
	case input.ButtonDPadUp:
		return ButtonDPadUp, true
	case input.ButtonDPadDown:
		return ButtonDPadDown, true
	case input.ButtonDPadLeft:
		return ButtonDPadLeft, true
	case input.ButtonDPadRight:
		return ButtonDPadRight, true
	case input.ButtonMode:
		return ButtonGuide, true
	default:
		return 0, false
	}
}

// MapAxis maps a hardware stick or trigger axis to its name. D-pad axes are
// not axes on the wire and report false.
func MapAxis(a input.Axis) (AxisName, bool) {
	switch a {
	case input.AxisLeftStickX:
		return AxisLeftX, true
	case input.AxisLeftStickY:
		return AxisLeftY, true
	case input.AxisRightStickX:
		return AxisRightX, true
	case input.AxisRightStickY:
		return AxisRightY, true
	case input.AxisLeftZ:
		return AxisLT, true
	case input.AxisRightZ:
		return AxisRT, true
	default:
		return "", false
	}
}
