// Package jsonx recovers a JSON value from arbitrary LLM output: fenced code
// blocks, prose with an embedded object or array, or raw text.
package jsonx

import (
	"encoding/json"
	"regexp"
)

// previewLen bounds how much of the offending text ParseError carries.
const previewLen = 500

// ParseError is returned when no JSON value could be recovered from text.
type ParseError struct {
	Preview string
}

func (e *ParseError) Error() string {
	return "jsonx: could not extract a JSON value from: " + e.Preview
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// Extract tries, in order: a fenced ```json ... ``` block, the first balanced
// {...} substring, the first balanced [...] substring, and finally the entire
// trimmed text. The first candidate that parses as valid JSON wins, so an
// array of objects embedded in prose yields its first object, not the array.
func Extract(text string) (json.RawMessage, error) {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if raw, ok := tryParse(m[1]); ok {
			return raw, nil
		}
	}

	if raw, ok := balancedSubstring(text, '{', '}'); ok {
		return raw, nil
	}
	if raw, ok := balancedSubstring(text, '[', ']'); ok {
		return raw, nil
	}

	if raw, ok := tryParse(text); ok {
		return raw, nil
	}

	return nil, &ParseError{Preview: preview(text)}
}

func tryParse(s string) (json.RawMessage, bool) {
	trimmed := trimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, false
	}
	return json.RawMessage(trimmed), true
}

// balancedSubstring scans text for the first run starting at openCh whose
// brace/bracket depth returns to zero, and returns it if it parses as JSON.
func balancedSubstring(text string, openCh, closeCh byte) (json.RawMessage, bool) {
	start := indexByte(text, openCh)
	if start == -1 {
		return nil, false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func preview(text string) string {
	t := trimSpace(text)
	if len(t) <= previewLen {
		return t
	}
	return t[:previewLen]
}
