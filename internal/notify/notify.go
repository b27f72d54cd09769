// Package notify delivers fire-and-forget user-visible messages.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notifier shows toast-style messages. Implementations must not block.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Warning(msg string)
}

// Message is one delivered notification
type Message struct {
	Level Level
	Text  string
}

// Console writes notifications as single lines, e.g. "✓ Signed in successfully"
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Success(msg string) { c.write("✓", msg) }
func (c *Console) Error(msg string)   { c.write("✗", msg) }
func (c *Console) Warning(msg string) { c.write("⚠", msg) }

func (c *Console) write(symbol, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", symbol, msg)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Error(msg string)   { r.add(LevelError, msg) }
func (r *Recorder) Warning(msg string) { r.add(LevelWarning, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: msg})
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Count returns how many messages with the given level and text were recorded
func (r *Recorder) Count(level Level, text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Level == level && m.Text == text {
			n++
		}
	}
	return n
}

// Discard drops every notification
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Warning(string) {}
