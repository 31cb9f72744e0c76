// internal/chat/history.go
package chat

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/quickbuttons/internal/types"
	"github.com/user/quickbuttons/pkg/llm"
)

// perMessageOverhead approximates the role and separator tokens the chat
// format adds around every message.
const perMessageOverhead = 4

// Counter returns the token count of a string.
type Counter func(text string) int

// Turn is one message of a conversation with the time it was recorded.
type Turn struct {
	llm.Message
	At time.Time
}

// History keeps a conversation per LLM button and assembles token-budgeted
// prompts from it.
type History struct {
	mu    sync.Mutex
	turns map[types.ButtonID][]Turn
	count Counter
	now   func() time.Time
}

// Option configures a History.
type Option func(*History)

// WithCounter replaces the tokenizer.
func WithCounter(c Counter) Option {
	return func(h *History) { h.count = c }
}

// WithClock sets the time source used to stamp turns.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// New creates an empty History. model selects the tokenizer; unknown models
// use cl100k_base, and when no encoding can be loaded at all the count falls
// back to a characters-per-token estimate.
func New(model string, opts ...Option) *History {
	h := &History{
		turns: make(map[types.ButtonID][]Turn),
		now:   time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	if h.count == nil {
		h.count = counterFor(model)
	}
	return h
}

func counterFor(model string) Counter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		slog.Warn("tokenizer unavailable, estimating token counts", "model", model, "error", err)
		return Estimate
	}
	return func(text string) int { return len(enc.Encode(text, nil, nil)) }
}

// Estimate approximates a token count at four characters per token.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}

// Append records a message for the button.
func (h *History) Append(id types.ButtonID, role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[id] = append(h.turns[id], Turn{
		Message: llm.Message{Role: role, Content: content},
		At:      h.now(),
	})
}

// Len returns the number of recorded turns for the button.
func (h *History) Len(id types.ButtonID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns[id])
}

// Reset forgets the button's conversation.
func (h *History) Reset(id types.ButtonID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, id)
}

// Build returns the messages to send for a new prompt: the system message,
// as much recent history as fits, and the prompt itself. A budget of zero or
// less keeps the whole history. The system message and the prompt are never
// dropped, even when they alone exceed the budget.
func (h *History) Build(id types.ButtonID, system, prompt string, budget int) []llm.Message {
	h.mu.Lock()
	turns := append([]Turn(nil), h.turns[id]...)
	h.mu.Unlock()

	var head []llm.Message
	used := 0
	if system != "" {
		head = append(head, llm.Message{Role: "system", Content: system})
		used += h.count(system) + perMessageOverhead
	}
	used += h.count(prompt) + perMessageOverhead

	// Walk backwards so the newest turns win the budget.
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := h.count(turns[i].Content) + perMessageOverhead
		if budget > 0 && used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	messages := make([]llm.Message, 0, len(head)+len(turns)-start+1)
	messages = append(messages, head...)
	for _, t := range turns[start:] {
		messages = append(messages, t.Message)
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	return messages
}

// Transcript renders the button's conversation as plain text.
func (h *History) Transcript(id types.ButtonID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var b strings.Builder
	for _, t := range h.turns[id] {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", t.At.Format(time.DateTime), t.Role, t.Content)
	}
	return b.String()
}

// Export writes the transcript to path.
func (h *History) Export(id types.ButtonID, path string) error {
	if err := os.WriteFile(path, []byte(h.Transcript(id)), 0644); err != nil {
		return fmt.Errorf("export chat: %w", err)
	}
	return nil
}
