package worker

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/gsmoverlay/input-server/internal/protocol"
)

func TestFallbackTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []protocol.Token
	}{
		{
			name: "empty",
			text: "",
			want: []protocol.Token{},
		},
		{
			name: "ascii with spaces",
			text: "a b",
			want: []protocol.Token{{Word: "a", Start: 0, End: 1}, {Word: "b", Start: 2, End: 3}},
		},
		{
			name: "multibyte offsets are character indices",
			text: "日本 語",
			want: []protocol.Token{
				{Word: "日", Start: 0, End: 1},
				{Word: "本", Start: 1, End: 2},
				{Word: "語", Start: 3, End: 4},
			},
		},
		{
			name: "ideographic space skipped",
			text: "猫　犬",
			want: []protocol.Token{{Word: "猫", Start: 0, End: 1}, {Word: "犬", Start: 2, End: 3}},
		},
		{
			name: "only whitespace",
			text: " \t\n",
			want: []protocol.Token{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackTokens(tt.text)
			if got == nil {
				t.Fatal("FallbackTokens() returned nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FallbackTokens(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFallbackSegments(t *testing.T) {
	got := FallbackSegments("日本語です")
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	seg := got[0]
	if seg.Text != "日本語です" || seg.Start != 0 || seg.End != 5 {
		t.Errorf("segment = %+v, want whole text spanning 0..5", seg)
	}
	if seg.HasReading || seg.Reading != nil {
		t.Errorf("fallback segment should have no reading, got %+v", seg)
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantErr bool
		wantLen int
	}{
		{"absent", `{"mecabAvailable":true}`, false, false, 0},
		{"null", `{"tokens":null}`, false, false, 0},
		{"empty array", `{"tokens":[]}`, true, false, 0},
		{"array", `{"tokens":[{"word":"a","start":0,"end":1}]}`, true, false, 1},
		{"wrong type", `{"tokens":"oops"}`, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r reply
			if err := json.Unmarshal([]byte(tt.raw), &r); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			items, ok, err := payload[protocol.Token](r, "tokens")
			if ok != tt.wantOK || (err != nil) != tt.wantErr {
				t.Fatalf("payload() ok=%v err=%v, want ok=%v err=%v", ok, err, tt.wantOK, tt.wantErr)
			}
			if ok && (items == nil || len(items) != tt.wantLen) {
				t.Errorf("items = %v, want %d non-nil", items, tt.wantLen)
			}
		})
	}
}

func TestReplyAvailable(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"mecabAvailable":true}`, true},
		{`{"mecabAvailable":false}`, false},
		{`{"mecabAvailable":"yes"}`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		var r reply
		if err := json.Unmarshal([]byte(tt.raw), &r); err != nil {
			t.Fatalf("bad fixture: %v", err)
		}
		if got := r.available(); got != tt.want {
			t.Errorf("available(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestOffline(t *testing.T) {
	var o Offline
	tok := o.Tokenize(context.Background(), "猫 犬")
	if tok.Available || len(tok.Tokens) != 2 {
		t.Errorf("Tokenize() = %+v", tok)
	}
	if fur := o.Furigana(context.Background(), ""); fur.Segments == nil || len(fur.Segments) != 0 {
		t.Errorf("Furigana(\"\") = %+v, want empty non-nil", fur)
	}
	if s := o.Stats(); s.State != StateDisabled {
		t.Errorf("State = %s, want %s", s.State, StateDisabled)
	}
}
