package input

import (
	"context"
	"fmt"
)

// DeviceID identifies a gamepad for the lifetime of the process.
type DeviceID string

// DeviceInfo describes a device known to a Source.
type DeviceInfo struct {
	ID    DeviceID
	Label string
}

// EventKind is the kind of a raw hardware event.
type EventKind int

const (
	Connected EventKind = iota + 1
	Disconnected
	ButtonPressed
	ButtonReleased
	ButtonChanged
	AxisChanged
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case ButtonPressed:
		return "button_pressed"
	case ButtonReleased:
		return "button_released"
	case ButtonChanged:
		return "button_changed"
	case AxisChanged:
		return "axis_changed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Button is a hardware button identified by position, independent of the
// labels printed on a particular pad.
type Button int

const (
	ButtonUnknown Button = iota
	ButtonSouth
	ButtonEast
	ButtonWest
	ButtonNorth
	ButtonLeftTrigger
	ButtonRightTrigger
	ButtonLeftTrigger2
	ButtonRightTrigger2
	ButtonSelect
	ButtonStart
	ButtonMode
	ButtonLeftThumb
	ButtonRightThumb
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
)

var buttonNames = map[Button]string{
	ButtonSouth:         "south",
	ButtonEast:          "east",
	ButtonWest:          "west",
	ButtonNorth:         "north",
	ButtonLeftTrigger:   "left_trigger",
	ButtonRightTrigger:  "right_trigger",
	ButtonLeftTrigger2:  "left_trigger2",
	ButtonRightTrigger2: "right_trigger2",
	ButtonSelect:        "select",
	ButtonStart:         "start",
	ButtonMode:          "mode",
	ButtonLeftThumb:     "left_thumb",
	ButtonRightThumb:    "right_thumb",
	ButtonDPadUp:        "dpad_up",
	ButtonDPadDown:      "dpad_down",
	ButtonDPadLeft:      "dpad_left",
	ButtonDPadRight:     "dpad_right",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return "unknown"
}

// Axis is a hardware axis.
type Axis int

const (
	AxisUnknown Axis = iota
	AxisLeftStickX
	AxisLeftStickY
	AxisRightStickX
	AxisRightStickY
	AxisLeftZ
	AxisRightZ
	AxisDPadX
	AxisDPadY
)

var axisNames = map[Axis]string{
	AxisLeftStickX:  "left_stick_x",
	AxisLeftStickY:  "left_stick_y",
	AxisRightStickX: "right_stick_x",
	AxisRightStickY: "right_stick_y",
	AxisLeftZ:       "left_z",
	AxisRightZ:      "right_z",
	AxisDPadX:       "dpad_x",
	AxisDPadY:       "dpad_y",
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return "unknown"
}

// Event is one raw hardware event.
//
// Button is set for the button kinds, Axis for AxisChanged. Value is the
// analog value for ButtonChanged and AxisChanged, roughly in [-1, 1].
// Code carries the driver's own identifier for logging unmapped inputs.
type Event struct {
	Device DeviceID
	Kind   EventKind
	Button Button
	Axis   Axis
	Value  float64
	Code   uint16
}

// Source is a hardware event source.
//
// NextEvent blocks until an event is available, the context ends or the
// source is closed (ErrClosed).
type Source interface {
	Devices() []DeviceInfo
	NextEvent(ctx context.Context) (Event, error)
	Label(id DeviceID) string
	Close() error
}
