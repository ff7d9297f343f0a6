package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeMap(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("encoded message %q is not a JSON object: %v", s, err)
	}
	return m
}

func TestEncode_TypeFirst(t *testing.T) {
	got, err := Encode(Axis{Device: "Pad1", Axis: "left_x", Value: 0.6})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"type":"axis","device":"Pad1","axis":"left_x","value":0.6}`
	if got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
}

func TestEncode_Pong(t *testing.T) {
	got, err := Encode(Pong{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got != `{"type":"pong"}` {
		t.Errorf("Encode(Pong) = %s", got)
	}
}

func TestEncode_ButtonValue(t *testing.T) {
	v := 0.7
	tests := []struct {
		name      string
		msg       Button
		wantValue bool
	}{
		{name: "trigger carries value", msg: Button{Device: "Pad1", Button: 6, Pressed: true, Name: "LT", Value: &v}, wantValue: true},
		{name: "face button omits value", msg: Button{Device: "Pad1", Button: 0, Pressed: true, Name: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			m := decodeMap(t, s)
			if m["type"] != TypeButton {
				t.Errorf("type = %v, want button", m["type"])
			}
			_, has := m["value"]
			if has != tt.wantValue {
				t.Errorf("value present = %v, want %v (%s)", has, tt.wantValue, s)
			}
		})
	}
}

func TestEncode_ConnectedState(t *testing.T) {
	plain, err := Encode(GamepadConnected{Device: "Pad1"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(plain, "state") {
		t.Errorf("broadcast connect should not carry state: %s", plain)
	}

	withState, err := Encode(GamepadConnected{
		Device: "Pad1",
		State: &State{
			Buttons: map[int]bool{0: false, 16: true},
			Axes:    map[string]float64{"left_x": 0},
		},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	m := decodeMap(t, withState)
	state, ok := m["state"].(map[string]any)
	if !ok {
		t.Fatalf("state missing: %s", withState)
	}
	buttons := state["buttons"].(map[string]any)
	if buttons["16"] != true || buttons["0"] != false {
		t.Errorf("buttons = %v, want keys by decimal code", buttons)
	}
}

func TestEncode_FuriganaRequestID(t *testing.T) {
	seg := []Segment{{Text: "漢字", Start: 0, End: 2}}

	without, _ := Encode(Furigana{Text: "漢字", Segments: seg})
	if strings.Contains(without, "requestId") {
		t.Errorf("requestId should be omitted: %s", without)
	}
	if !strings.Contains(without, `"reading":null`) {
		t.Errorf("reading should serialize as null: %s", without)
	}

	with, _ := Encode(Furigana{Text: "漢字", Segments: seg, RequestID: json.RawMessage(`{"n":7}`)})
	m := decodeMap(t, with)
	rid, ok := m["requestId"].(map[string]any)
	if !ok || rid["n"] != float64(7) {
		t.Errorf("requestId = %v, want echoed object", m["requestId"])
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"type":"axis","value":1}`, want: "axis"},
		{in: `{"value":1}`, want: ""},
		{in: `not json`, want: ""},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.in); got != tt.want {
			t.Errorf("TypeOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ClientMessage
		wantErr bool
	}{
		{name: "ping", in: `{"type":"ping"}`, want: Ping{}},
		{name: "get_state", in: `{"type":"get_state"}`, want: GetState{}},
		{name: "tokenize", in: `{"type":"tokenize","text":"日本語","blockIndex":3}`, want: Tokenize{Text: "日本語", BlockIndex: 3}},
		{name: "tokenize defaults", in: `{"type":"tokenize"}`, want: Tokenize{}},
		{name: "unknown type", in: `{"type":"subscribe","topic":"x"}`, want: Unknown{Type: "subscribe"}},
		{name: "malformed json", in: `{"type":`, wantErr: true},
		{name: "missing type", in: `{"text":"x"}`, wantErr: true},
		{name: "non-string type", in: `{"type":5}`, wantErr: true},
		{name: "fractional block index", in: `{"type":"tokenize","blockIndex":1.5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeClientMessage() = %#v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeClientMessage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeClientMessage() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeClientMessage_MissingTypeSentinel(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{}`))
	if !errors.Is(err, ErrMissingType) {
		t.Errorf("error = %v, want ErrMissingType", err)
	}
}

func TestDecodeClientMessage_Furigana(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		wantID string
	}{
		{name: "string id", in: `{"type":"get_furigana","text":"a","lineIndex":4,"requestId":"r-1"}`, wantID: `"r-1"`},
		{name: "numeric id", in: `{"type":"get_furigana","text":"a","requestId":12}`, wantID: `12`},
		{name: "null id is absent", in: `{"type":"get_furigana","text":"a","requestId":null}`, wantID: ``},
		{name: "no id", in: `{"type":"get_furigana","text":"a"}`, wantID: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeClientMessage() error = %v", err)
			}
			msg, ok := got.(GetFurigana)
			if !ok {
				t.Fatalf("got %T, want GetFurigana", got)
			}
			if string(msg.RequestID) != tt.wantID {
				t.Errorf("RequestID = %q, want %q", msg.RequestID, tt.wantID)
			}
		})
	}
}
