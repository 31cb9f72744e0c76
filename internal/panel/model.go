// Package panel is the interactive surface: a bubbletea program that lists
// the buttons, runs them through the executor and shows their status, live
// timer countdowns and streamed output. It is the only goroutine that
// touches its own state; results arrive by draining the executor outbox.
package panel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/lookup"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

const (
	statusTimeout = 3 * time.Second
	// maxOutput bounds the streamed output kept per button; older text is
	// dropped from the front.
	maxOutput = 256 << 10
)

// Buttons is the registry as seen by the panel.
type Buttons interface {
	List() []types.Button
	Problem(id types.ButtonID) error
	Reorder(id types.ButtonID, newIndex int) error
}

// Executor runs and cancels buttons and exposes its outbox.
type Executor interface {
	Invoke(id types.ButtonID, opts ...executor.InvokeOption) (*executor.Handle, error)
	Cancel(id types.ButtonID) error
	Outbox() *executor.Outbox
}

// Timers reports timer states.
type Timers interface {
	States() []timer.State
}

// Deps are the panel's collaborators.
type Deps struct {
	Buttons Buttons
	Exec    Executor
	Timers  Timers

	// Reload re-reads the config document after an external edit.
	Reload func() error
	// Watcher, when set, watches ConfigPath's directory.
	Watcher    *fsnotify.Watcher
	ConfigPath string

	Theme      types.ThemeLookup
	Translator types.Translator
	ThemeName  string
	Locale     string
}

// output is what the panel shows for a button's latest invocation.
type output struct {
	invocation types.InvocationID
	text       strings.Builder
	rendered   string
}

// Model is the bubbletea model.
type Model struct {
	deps   Deps
	keys   keyMap
	help   help.Model
	spin   spinner.Model
	input  textinput.Model
	view   viewport.Model
	styles styles

	buttons []types.Button
	cursor  int
	running map[types.ButtonID]bool
	summary map[types.ButtonID]string
	failed  map[types.ButtonID]bool
	outputs map[types.ButtonID]*output
	timers  map[types.ButtonID]timer.State

	inputFor types.ButtonID
	status   string
	statusID int
	width    int
	height   int

	copy func(string) error
}

// New builds the model. Missing lookups fall back to the built-in tables.
func New(d Deps) Model {
	if d.Theme == nil || d.Translator == nil {
		l := lookup.New()
		if d.Theme == nil {
			d.Theme = l
		}
		if d.Translator == nil {
			d.Translator = l
		}
	}

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 4096

	m := Model{
		deps:    d,
		keys:    newKeyMap(),
		help:    help.New(),
		spin:    s,
		input:   ti,
		view:    viewport.New(0, 0),
		styles:  newStyles(d.Theme.ThemeFor(d.ThemeName)),
		running: make(map[types.ButtonID]bool),
		summary: make(map[types.ButtonID]string),
		failed:  make(map[types.ButtonID]bool),
		outputs: make(map[types.ButtonID]*output),
		timers:  make(map[types.ButtonID]timer.State),
		copy:    clipboard.WriteAll,
	}
	m.buttons = d.Buttons.List()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitOutbox(m.deps.Exec.Outbox()), tick(), m.spin.Tick}
	if m.deps.Watcher != nil {
		cmds = append(cmds, watchConfig(m.deps.Watcher, m.deps.ConfigPath))
	}
	return tea.Batch(cmds...)
}

func (m Model) t(key string) string {
	return m.deps.Translator.Translate(key, m.deps.Locale)
}

func (m Model) selected() (types.Button, bool) {
	if m.cursor < 0 || m.cursor >= len(m.buttons) {
		return types.Button{}, false
	}
	return m.buttons[m.cursor], true
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusID++
	m.status = text
	id := m.statusID
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return statusClearMsg{id: id} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.resizeOutput()
		m.refreshOutput()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case outboxMsg:
		cmds := []tea.Cmd{waitOutbox(m.deps.Exec.Outbox())}
		for _, ev := range msg.events {
			if cmd := m.apply(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		m.refreshOutput()
		return m, tea.Batch(cmds...)

	case tickMsg:
		m.timers = make(map[types.ButtonID]timer.State)
		for _, st := range m.deps.Timers.States() {
			m.timers[st.ButtonID] = st
		}
		return m, tick()

	case configChangedMsg:
		cmd := m.reload()
		return m, tea.Batch(cmd, watchConfig(m.deps.Watcher, m.deps.ConfigPath))

	case renderedMsg:
		for _, out := range m.outputs {
			if string(out.invocation) == msg.invocation {
				out.rendered = msg.content
			}
		}
		m.refreshOutput()
		return m, nil

	case statusClearMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case errMsg:
		cmd := m.setStatus(msg.err.Error())
		if m.deps.Watcher != nil {
			return m, tea.Batch(cmd, watchConfig(m.deps.Watcher, m.deps.ConfigPath))
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Blur()
			m.input.Reset()
			return m, m.invoke(m.inputFor, executor.WithInput(text))
		case tea.KeyEsc:
			m.input.Blur()
			m.input.Reset()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.refreshOutput()
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.buttons)-1 {
			m.cursor++
			m.refreshOutput()
		}
	case key.Matches(msg, m.keys.MoveUp):
		return m, m.move(-1)
	case key.Matches(msg, m.keys.MoveDown):
		return m, m.move(1)
	case key.Matches(msg, m.keys.Run):
		if b, ok := m.selected(); ok {
			return m, m.invoke(b.ID)
		}
	case key.Matches(msg, m.keys.RunInput):
		if b, ok := m.selected(); ok {
			m.inputFor = b.ID
			m.input.Placeholder = b.DisplayName()
			return m, m.input.Focus()
		}
	case key.Matches(msg, m.keys.Cancel):
		if b, ok := m.selected(); ok {
			if err := m.deps.Exec.Cancel(b.ID); err != nil {
				return m, m.setStatus(err.Error())
			}
		}
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyOutput()
	case key.Matches(msg, m.keys.Reload):
		return m, m.reload()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resizeOutput()
	default:
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}
	return m, nil
}

// invoke hands the button to the executor. Invoke never blocks on the
// action itself; a busy button is reported, not treated as a failure.
func (m *Model) invoke(id types.ButtonID, opts ...executor.InvokeOption) tea.Cmd {
	h, err := m.deps.Exec.Invoke(id, opts...)
	if errors.Is(err, executor.ErrBusy) {
		return m.setStatus(m.t("busy"))
	}
	if err != nil {
		m.failed[id] = true
		m.summary[id] = err.Error()
		return m.setStatus(err.Error())
	}
	m.running[id] = true
	m.failed[id] = false
	m.summary[id] = m.t("running")
	m.outputs[id] = &output{invocation: h.ID}
	m.refreshOutput()
	return nil
}

func (m *Model) apply(ev executor.Event) tea.Cmd {
	switch ev.Kind {
	case executor.EventChunk:
		out := m.outputs[ev.ButtonID]
		if out == nil || out.invocation != ev.InvocationID {
			out = &output{invocation: ev.InvocationID}
			m.outputs[ev.ButtonID] = out
		}
		appendBounded(&out.text, ev.Chunk)
		m.running[ev.ButtonID] = true

	case executor.EventDone:
		rec := ev.Record
		delete(m.running, ev.ButtonID)
		m.failed[ev.ButtonID] = rec.Status == executor.StatusFailed
		m.summary[ev.ButtonID] = m.describe(rec)

		out := m.outputs[ev.ButtonID]
		if out == nil || out.invocation != ev.InvocationID {
			out = &output{invocation: ev.InvocationID}
			m.outputs[ev.ButtonID] = out
		}
		if out.text.Len() == 0 && rec.Result.Output != "" {
			appendBounded(&out.text, rec.Result.Output)
		}
		if rec.Type == types.TypeLLM && rec.Status == executor.StatusSucceeded && out.text.Len() > 0 {
			return renderMarkdown(string(ev.InvocationID), out.text.String(), glamourStyle(m.deps.ThemeName), m.view.Width)
		}

	case executor.EventNotice:
		m.summary[ev.ButtonID] = ev.Notice
		return m.setStatus(fmt.Sprintf("%s: %s", m.label(ev.ButtonID), ev.Notice))
	}
	return nil
}

func (m Model) describe(rec executor.Record) string {
	switch rec.Status {
	case executor.StatusSucceeded:
		if rec.Message != "" {
			return rec.Message
		}
		return m.t("succeeded")
	case executor.StatusCancelled:
		return m.t("cancelled")
	default:
		return rec.Summary()
	}
}

func (m Model) label(id types.ButtonID) string {
	for _, b := range m.buttons {
		if b.ID == id {
			return b.DisplayName()
		}
	}
	return id.String()
}

func appendBounded(sb *strings.Builder, chunk string) {
	if sb.Len()+len(chunk) <= maxOutput {
		sb.WriteString(chunk)
		return
	}
	keep := sb.String() + chunk
	keep = keep[len(keep)-maxOutput:]
	sb.Reset()
	sb.WriteString(keep)
}

func (m *Model) move(delta int) tea.Cmd {
	b, ok := m.selected()
	if !ok {
		return nil
	}
	target := m.cursor + delta
	if target < 0 || target >= len(m.buttons) {
		return nil
	}
	MarkSelfWrite()
	if err := m.deps.Buttons.Reorder(b.ID, target); err != nil {
		return m.setStatus(err.Error())
	}
	m.buttons = m.deps.Buttons.List()
	m.cursor = target
	return nil
}

func (m *Model) reload() tea.Cmd {
	if m.deps.Reload != nil {
		if err := m.deps.Reload(); err != nil {
			return m.setStatus(err.Error())
		}
	}
	m.buttons = m.deps.Buttons.List()
	if m.cursor >= len(m.buttons) {
		m.cursor = max(len(m.buttons)-1, 0)
	}
	m.resizeOutput()
	m.refreshOutput()
	return m.setStatus(m.t("reloaded"))
}

func (m *Model) copyOutput() tea.Cmd {
	b, ok := m.selected()
	if !ok {
		return nil
	}
	out := m.outputs[b.ID]
	if out == nil || out.text.Len() == 0 {
		return m.setStatus(m.t("no_output"))
	}
	if err := m.copy(out.text.String()); err != nil {
		return m.setStatus(fmt.Sprintf("clipboard: %v", err))
	}
	return m.setStatus(m.t("copied"))
}

func glamourStyle(theme string) string {
	if strings.EqualFold(theme, "light") {
		return "light"
	}
	return "dark"
}
