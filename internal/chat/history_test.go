package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/quickbuttons/internal/types"
)

func newTestHistory() *History {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return New("gpt-4", WithCounter(Estimate), WithClock(func() time.Time { return at }))
}

func TestBuildBasic(t *testing.T) {
	h := newTestHistory()
	h.Append(1, "user", "hello")
	h.Append(1, "assistant", "hi there")

	messages := h.Build(1, "be brief", "how are you?", 0)

	// system + 2 history + prompt
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "be brief" {
		t.Errorf("expected system message first, got %+v", messages[0])
	}
	if messages[1].Content != "hello" || messages[2].Role != "assistant" {
		t.Errorf("history out of order: %+v", messages[1:3])
	}
	if messages[3].Role != "user" || messages[3].Content != "how are you?" {
		t.Errorf("expected prompt last, got %+v", messages[3])
	}
}

func TestBuildWithoutSystem(t *testing.T) {
	h := newTestHistory()
	messages := h.Build(1, "", "ping", 0)
	if len(messages) != 1 || messages[0].Role != "user" {
		t.Fatalf("expected only the prompt, got %+v", messages)
	}
}

func TestBuildBudgetKeepsNewest(t *testing.T) {
	h := newTestHistory()
	for i := 0; i < 50; i++ {
		h.Append(1, "user", strings.Repeat("x", 40)+string(rune('a'+i%26)))
	}
	h.Append(1, "assistant", "latest")

	messages := h.Build(1, "sys", "next", 100)

	if len(messages) >= 52 {
		t.Fatalf("expected truncation, got %d messages", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("system message must survive truncation")
	}
	if messages[len(messages)-2].Content != "latest" {
		t.Errorf("newest history turn should be kept, got %q", messages[len(messages)-2].Content)
	}
	if messages[len(messages)-1].Content != "next" {
		t.Errorf("prompt must be last")
	}
}

func TestHistoriesAreIndependent(t *testing.T) {
	h := newTestHistory()
	h.Append(1, "user", "one")
	h.Append(2, "user", "two")
	h.Reset(1)

	if h.Len(1) != 0 {
		t.Errorf("expected button 1 history cleared")
	}
	if h.Len(2) != 1 {
		t.Errorf("expected button 2 history untouched")
	}
}

func TestExport(t *testing.T) {
	h := newTestHistory()
	var id types.ButtonID = 3
	h.Append(id, "user", "question")
	h.Append(id, "assistant", "answer")

	path := filepath.Join(t.TempDir(), "chat.txt")
	if err := h.Export(id, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "[2024-05-01 09:30:00] user:\nquestion") {
		t.Errorf("unexpected transcript:\n%s", got)
	}
	if strings.Index(got, "question") > strings.Index(got, "answer") {
		t.Errorf("transcript out of order")
	}
}
