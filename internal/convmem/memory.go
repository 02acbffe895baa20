// Package convmem implements a bounded-window, role-tagged conversation log
// used to feed recent dialogue history into LLM prompts.
package convmem

import (
	"fmt"
	"strings"
)

// defaultWindowSize matches the original narrative engine's sliding-window
// buffer size.
const defaultWindowSize = 50

// Message is a single role-tagged turn in a conversation log. It is a local
// type rather than pkg/types.Message so that pkg/types can embed a *Memory
// on WorldState without an import cycle.
type Message struct {
	Role    string
	Content string
}

// Memory is a sliding-window buffer of role-tagged messages. The oldest
// message is dropped first once the window fills. Not safe for concurrent
// use without external synchronization — callers hold the owning world's
// per-world lock while mutating it.
type Memory struct {
	windowSize int
	messages   []Message
}

// New creates a Memory with the given window size. A windowSize of 0 selects
// the default of 50 messages.
func New(windowSize int) *Memory {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Memory{windowSize: windowSize}
}

// Append adds a message to the log.
func (m *Memory) Append(role, content string) {
	m.messages = append(m.messages, Message{Role: role, Content: content})
}

// Window returns the most recent windowSize messages, oldest first.
func (m *Memory) Window() []Message {
	if len(m.messages) <= m.windowSize {
		return append([]Message(nil), m.messages...)
	}
	start := len(m.messages) - m.windowSize
	return append([]Message(nil), m.messages[start:]...)
}

// All returns every message ever appended, ignoring the window.
func (m *Memory) All() []Message {
	return append([]Message(nil), m.messages...)
}

// Clear wipes the log.
func (m *Memory) Clear() {
	m.messages = nil
}

// Len reports the total number of messages ever appended.
func (m *Memory) Len() int {
	return len(m.messages)
}

// Render renders the current window as a plain-text transcript, suitable for
// injecting into a prompt as recent conversation context.
func (m *Memory) Render() string {
	window := m.Window()
	lines := make([]string, 0, len(window))
	for _, msg := range window {
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(msg.Role), msg.Content))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
