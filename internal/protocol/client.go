package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Client message type discriminators.
const (
	TypePing        = "ping"
	TypeGetState    = "get_state"
	TypeTokenize    = "tokenize"
	TypeGetFurigana = "get_furigana"
)

// ErrMissingType is returned by DecodeClientMessage when the object has no
// string "type" field.
var ErrMissingType = errors.New("protocol: message has no type")

// ClientMessage is a message received from a subscriber.
// The set of implementations is closed to this package.
type ClientMessage interface {
	clientMessage()
}

// Ping asks for a Pong.
type Ping struct{}

// GetState asks for one GamepadState per known device.
type GetState struct{}

// Tokenize asks for the tokens of Text.
type Tokenize struct {
	Text       string `json:"text"`
	BlockIndex int64  `json:"blockIndex"`
}

// GetFurigana asks for furigana segments of Text.
type GetFurigana struct {
	Text      string          `json:"text"`
	LineIndex int64           `json:"lineIndex"`
	RequestID json.RawMessage `json:"requestId"`
}

// Unknown is any well-formed message whose type is not recognized.
// Sessions ignore it.
type Unknown struct {
	Type string
}

func (Ping) clientMessage()        {}
func (GetState) clientMessage()    {}
func (Tokenize) clientMessage()    {}
func (GetFurigana) clientMessage() {}
func (Unknown) clientMessage()     {}

// DecodeClientMessage parses one inbound text frame.
//
// Missing payload fields take their zero value. A JSON null requestId is
// treated as absent.
//
// Parameters:
//   - data: Raw frame payload
//
// Returns:
//   - ClientMessage: Decoded message, Unknown for unrecognized types
//   - error: If the payload is not a JSON object with a string type, or a
//     recognized message has fields of the wrong type
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding client message: %w", err)
	}
	if head.Type == nil {
		return nil, ErrMissingType
	}

	switch *head.Type {
	case TypePing:
		return Ping{}, nil
	case TypeGetState:
		return GetState{}, nil
	case TypeTokenize:
		var msg Tokenize
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", TypeTokenize, err)
		}
		return msg, nil
	case TypeGetFurigana:
		var msg GetFurigana
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", TypeGetFurigana, err)
		}
		if bytes.Equal(bytes.TrimSpace(msg.RequestID), []byte("null")) {
			msg.RequestID = nil
		}
		return msg, nil
	default:
		return Unknown{Type: *head.Type}, nil
	}
}
