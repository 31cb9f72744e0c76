package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/quickbuttons/internal/runtime/handlers"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

// ─── Styles ──────────────────────────────────────────────────────────────────

type styles struct {
	title    lipgloss.Style
	button   lipgloss.Style
	cursor   lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	warning  lipgloss.Style
	accent   lipgloss.Style
	border   lipgloss.Style
	selected lipgloss.Style
}

func newStyles(p types.Palette) styles {
	color := func(slot string) lipgloss.Color { return lipgloss.Color(p[slot]) }
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(color("accent")),
		button:   lipgloss.NewStyle().Foreground(color("button_fg")),
		cursor:   lipgloss.NewStyle().Foreground(color("accent")).SetString("│ "),
		muted:    lipgloss.NewStyle().Foreground(color("muted")),
		success:  lipgloss.NewStyle().Foreground(color("success")),
		failure:  lipgloss.NewStyle().Foreground(color("error")),
		warning:  lipgloss.NewStyle().Foreground(color("warning")),
		accent:   lipgloss.NewStyle().Foreground(color("accent")),
		border:   lipgloss.NewStyle().Foreground(color("border")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(color("fg")).Background(color("button_bg")),
	}
}

// ─── Layout ──────────────────────────────────────────────────────────────────

// chromeHeight is the title, separator, status and help rows.
func (m Model) chromeHeight() int {
	h := 4
	if m.help.ShowAll {
		h += 5
	}
	if m.input.Focused() {
		h++
	}
	return h
}

func (m *Model) resizeOutput() {
	m.view.Width = max(m.width-2, 0)
	m.view.Height = max(m.height-len(m.buttons)-m.chromeHeight(), 3)
}

// refreshOutput shows the selected button's latest output.
func (m *Model) refreshOutput() {
	b, ok := m.selected()
	if !ok {
		m.view.SetContent("")
		return
	}
	out := m.outputs[b.ID]
	if out == nil {
		m.view.SetContent(m.styles.muted.Render(m.t("no_output")))
		return
	}
	content := out.text.String()
	if out.rendered != "" {
		content = out.rendered
	}
	m.view.SetContent(content)
	if m.running[b.ID] {
		m.view.GotoBottom()
	}
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.title.Render("QuickButtons"))
	sb.WriteString("\n")

	for i, b := range m.buttons {
		sb.WriteString(m.renderButton(i, b))
		sb.WriteString("\n")
	}

	sb.WriteString(m.styles.border.Render(strings.Repeat("─", max(m.width, 10))))
	sb.WriteString("\n")
	sb.WriteString(m.view.View())
	sb.WriteString("\n")

	if m.input.Focused() {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}
	if m.status != "" {
		sb.WriteString(m.styles.accent.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) renderButton(i int, b types.Button) string {
	bar := "  "
	name := m.styles.button.Render(b.DisplayName())
	if i == m.cursor {
		bar = m.styles.cursor.String()
		name = m.styles.selected.Render(b.DisplayName())
	}
	if b.Icon != "" {
		name = b.Icon + " " + name
	}

	var state string
	st, timed := m.timers[b.ID]
	problem := m.deps.Buttons.Problem(b.ID)
	switch {
	case m.running[b.ID]:
		state = m.spin.View() + " " + m.styles.accent.Render(m.summary[b.ID])
	case timed && st.Phase != timer.Idle:
		state = m.styles.warning.Render(m.describeTimer(st))
	case problem != nil:
		state = m.styles.failure.Render("⚠ " + problem.Error())
	case m.failed[b.ID]:
		state = m.styles.failure.Render(m.summary[b.ID])
	case m.summary[b.ID] != "":
		state = m.styles.success.Render(m.summary[b.ID])
	}

	line := fmt.Sprintf("%s%s %s", bar, name, m.styles.muted.Render(string(b.Type)))
	if state != "" {
		line += "  " + state
	}
	return line
}

func (m Model) describeTimer(st timer.State) string {
	if st.Pomodoro && (st.Phase == timer.Running || st.Phase == timer.Paused) {
		return fmt.Sprintf("%s %s %d/%d", m.t(string(st.Sub)), timer.FormatRemaining(st.Remaining), st.Cycle, st.Cycles)
	}
	return handlers.Describe(st)
}
