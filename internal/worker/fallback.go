package worker

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/gsmoverlay/input-server/internal/protocol"
)

// FallbackTokens splits text into one token per non-whitespace character.
// Offsets are character (rune) indices, not byte offsets.
func FallbackTokens(text string) []protocol.Token {
	tokens := []protocol.Token{}
	i := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			tokens = append(tokens, protocol.Token{Word: string(r), Start: i, End: i + 1})
		}
		i++
	}
	return tokens
}

// FallbackSegments returns the whole text as a single segment without a
// reading.
func FallbackSegments(text string) []protocol.Segment {
	return []protocol.Segment{{
		Text:  text,
		Start: 0,
		End:   utf8.RuneCountInString(text),
	}}
}

// Offline answers every request locally. It stands in for a Bridge when the
// worker is disabled.
type Offline struct{}

// Tokenize returns the fallback tokens for text.
func (Offline) Tokenize(_ context.Context, text string) TokenizeResult {
	return TokenizeResult{Tokens: FallbackTokens(text)}
}

// Furigana returns the fallback segments for text. Empty text yields no
// segments.
func (Offline) Furigana(_ context.Context, text string) FuriganaResult {
	if text == "" {
		return FuriganaResult{Segments: []protocol.Segment{}}
	}
	return FuriganaResult{Segments: FallbackSegments(text)}
}

// Stats reports the disabled state.
func (Offline) Stats() Stats {
	return Stats{State: StateDisabled}
}
