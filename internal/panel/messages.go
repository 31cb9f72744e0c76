package panel

import "github.com/user/quickbuttons/internal/executor"

// ─── Messages ────────────────────────────────────────────────────────────────
//
// Async tea.Cmd functions (in commands.go) produce these; Update handles them
// on the program's single goroutine.

// outboxMsg carries everything drained from the executor outbox in one turn.
type outboxMsg struct {
	events []executor.Event
}

// tickMsg refreshes timer countdowns.
type tickMsg struct{}

// configChangedMsg is sent by the config watcher after debounce.
type configChangedMsg struct{}

// renderedMsg delivers glamour-rendered markdown for one invocation.
type renderedMsg struct {
	invocation string
	content    string
}

type statusClearMsg struct {
	id int
}

type errMsg struct {
	err error
}
