package orchestration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const defaultMinFragmentLength = 20

// Words that end with a period without ending a sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "ave": {}, "blvd": {}, "dept": {}, "est": {}, "fig": {},
	"inc": {}, "ltd": {}, "vs": {}, "etc": {}, "approx": {}, "govt": {},
}

// sentenceSplitter turns an incrementally arriving text stream into fragments
// complete enough to synthesize independently. Fragments are emitted as early
// as safely possible; splitting too eagerly desynchronizes the synthesized
// prosody, so boundaries guarded by an abbreviation, a decimal number, or a
// too-short clause merge forward into the next candidate instead.
type sentenceSplitter struct {
	onSentence func(fragment string)

	minLength int
	buffer    string
}

func newSentenceSplitter(onSentence func(fragment string)) *sentenceSplitter {
	return &sentenceSplitter{
		onSentence: onSentence,
		minLength:  defaultMinFragmentLength,
	}
}

// Push appends chunk to the buffer and emits every fragment whose boundary
// passes the guards, in order, synchronously.
func (s *sentenceSplitter) Push(chunk string) {
	s.buffer += chunk

	emitted := 0
	for i := 0; i < len(s.buffer); i++ {
		if !s.isBoundary(i) {
			continue
		}

		fragment := strings.TrimSpace(s.buffer[emitted : i+1])
		if utf8.RuneCountInString(fragment) < s.minLength {
			continue
		}

		if s.onSentence != nil {
			s.onSentence(fragment)
		}
		emitted = i + 1
	}
	s.buffer = s.buffer[emitted:]
}

// Done flushes whatever remains as a final fragment, ignoring the boundary
// guards, then clears state.
func (s *sentenceSplitter) Done() {
	fragment := strings.TrimSpace(s.buffer)
	s.buffer = ""
	if fragment != "" && s.onSentence != nil {
		s.onSentence(fragment)
	}
}

// Reset discards buffered text without emitting anything.
func (s *sentenceSplitter) Reset() {
	s.buffer = ""
}

func (s *sentenceSplitter) isBoundary(i int) bool {
	c := s.buffer[i]
	if c == '\n' {
		return true
	}
	if c != '.' && c != '!' && c != '?' {
		return false
	}
	if c == '.' && i > 0 && i+1 < len(s.buffer) &&
		isDigit(s.buffer[i-1]) && isDigit(s.buffer[i+1]) {
		return false
	}
	// A terminal mark at the very end of the buffer may still be mid-token
	// (an abbreviation or number with more text coming); wait for more input
	// or the final flush.
	if i+1 >= len(s.buffer) || !isSpace(s.buffer[i+1]) {
		return false
	}
	if c == '.' {
		if _, ok := abbreviations[strings.ToLower(precedingWord(s.buffer, i))]; ok {
			return false
		}
	}
	return true
}

// precedingWord is the maximal run of letters immediately before position i.
func precedingWord(text string, i int) string {
	start := i
	for start > 0 && unicode.IsLetter(rune(text[start-1])) {
		start--
	}
	return text[start:i]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
