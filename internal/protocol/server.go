package protocol

import (
	"encoding/json"
	"fmt"
)

// Server message type discriminators.
const (
	TypeGamepadConnected    = "gamepad_connected"
	TypeGamepadDisconnected = "gamepad_disconnected"
	TypeGamepadState        = "gamepad_state"
	TypeButton              = "button"
	TypeAxis                = "axis"
	TypeTokens              = "tokens"
	TypeFurigana            = "furigana"
	TypePong                = "pong"
)

// TokenSource is the fixed "tokenSource" value of tokens replies.
const TokenSource = "mecab"

// ServerMessage is a message sent from the server to subscribers.
// The set of implementations is closed to this package.
type ServerMessage interface {
	MessageType() string
	serverMessage()
}

// State is the button and axis state carried by snapshots.
// Buttons serialize keyed by decimal code ("0".."16").
type State struct {
	Buttons map[int]bool       `json:"buttons"`
	Axes    map[string]float64 `json:"axes"`
}

// GamepadConnected announces a device. State is present only in the
// per-session initial snapshot.
type GamepadConnected struct {
	Device string `json:"device"`
	State  *State `json:"state,omitempty"`
}

// GamepadDisconnected announces that a device went away.
type GamepadDisconnected struct {
	Device string `json:"device"`
}

// GamepadState is the reply to get_state, one per device.
type GamepadState struct {
	Device  string             `json:"device"`
	Buttons map[int]bool       `json:"buttons"`
	Axes    map[string]float64 `json:"axes"`
}

// Button is a button edge. Value is set only for the LT and RT triggers.
type Button struct {
	Device  string   `json:"device"`
	Button  int      `json:"button"`
	Pressed bool     `json:"pressed"`
	Name    string   `json:"name"`
	Value   *float64 `json:"value,omitempty"`
}

// Axis is a normalized axis value.
type Axis struct {
	Device string  `json:"device"`
	Axis   string  `json:"axis"`
	Value  float64 `json:"value"`
}

// Token is one tokenizer result, positioned by rune offsets.
type Token struct {
	Word     string `json:"word"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Reading  string `json:"reading,omitempty"`
	Headword string `json:"headword,omitempty"`
	POS      string `json:"pos,omitempty"`
}

// Segment is one furigana segment. Reading is null when HasReading is false.
type Segment struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	HasReading bool    `json:"hasReading"`
	Reading    *string `json:"reading"`
}

// Tokens is the reply to tokenize.
type Tokens struct {
	BlockIndex          int64   `json:"blockIndex"`
	Text                string  `json:"text"`
	Tokens              []Token `json:"tokens"`
	TokenSource         string  `json:"tokenSource"`
	MecabAvailable      bool    `json:"mecabAvailable"`
	YomitanAPIAvailable bool    `json:"yomitanApiAvailable"`
}

// Furigana is the reply to get_furigana. RequestID is echoed verbatim when
// the request carried one.
type Furigana struct {
	LineIndex           int64           `json:"lineIndex"`
	Text                string          `json:"text"`
	Segments            []Segment       `json:"segments"`
	MecabAvailable      bool            `json:"mecabAvailable"`
	YomitanAPIAvailable bool            `json:"yomitanApiAvailable"`
	RequestID           json.RawMessage `json:"requestId,omitempty"`
}

// Pong is the reply to ping.
type Pong struct{}

func (GamepadConnected) MessageType() string    { return TypeGamepadConnected }
func (GamepadDisconnected) MessageType() string { return TypeGamepadDisconnected }
func (GamepadState) MessageType() string        { return TypeGamepadState }
func (Button) MessageType() string              { return TypeButton }
func (Axis) MessageType() string                { return TypeAxis }
func (Tokens) MessageType() string              { return TypeTokens }
func (Furigana) MessageType() string            { return TypeFurigana }
func (Pong) MessageType() string                { return TypePong }

func (GamepadConnected) serverMessage()    {}
func (GamepadDisconnected) serverMessage() {}
func (GamepadState) serverMessage()        {}
func (Button) serverMessage()              {}
func (Axis) serverMessage()                {}
func (Tokens) serverMessage()              {}
func (Furigana) serverMessage()            {}
func (Pong) serverMessage()                {}

// Encode serializes msg as one JSON object with a leading "type" field.
//
// Parameters:
//   - msg: Message to encode
//
// Returns:
//   - string: JSON text ready for a WebSocket text frame
//   - error: If the payload cannot be marshalled
func Encode(msg ServerMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", msg.MessageType(), err)
	}

	head := `{"type":"` + msg.MessageType() + `"`
	if string(body) == "{}" {
		return head + "}", nil
	}
	// body is a JSON object; splice its members after the type field.
	return head + "," + string(body[1:]), nil
}

// TypeOf extracts the "type" discriminator of an encoded message, or ""
// when the text is not a JSON object with a string type.
func TypeOf(encoded string) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(encoded), &head); err != nil {
		return ""
	}
	return head.Type
}
