// Package tui renders the live nudge worklist as a terminal dashboard.
package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
)

// actionTimeout bounds one refresh, snooze, or dismiss issued from the dashboard.
const actionTimeout = 30 * time.Second

// Service is the controller surface the dashboard drives.
type Service interface {
	Subscribe() (<-chan app.View, func())
	Refresh(context.Context) (app.View, error)
	Snooze(context.Context, string, time.Duration) (app.View, error)
	Dismiss(context.Context, string) (app.View, error)
}

// Model is the bubbletea model for the nudge dashboard.
type Model struct {
	svc   Service
	views <-chan app.View
	unsub func()

	view     app.View
	received bool
	selected int

	presets []domain.SnoozePreset
	preset  int
	now     func() time.Time
	loc     *time.Location

	ready  bool
	width  int
	height int
	status string
	err    error

	help help.Model
	keys keyMap
}

// viewMsg carries one published controller view.
type viewMsg struct {
	view app.View
}

// viewsClosedMsg reports that the controller stopped publishing.
type viewsClosedMsg struct{}

// actionMsg carries the outcome of one user action.
type actionMsg struct {
	status string
	err    error
}

// NewModel constructs a dashboard subscribed to svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	views, unsub := svc.Subscribe()
	m := Model{
		svc:     svc,
		views:   views,
		unsub:   unsub,
		presets: defaultPresets(),
		now:     time.Now,
		loc:     time.Local,
		status:  "loading...",
		help:    h,
		keys:    newKeyMap(),
	}
	m.preset = 2
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.preset = clamp(m.preset, 0, len(m.presets)-1)
	return m
}

// Init starts listening for published views.
func (m Model) Init() tea.Cmd {
	return waitForView(m.views)
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m = m.applyView(msg.view)
		return m, waitForView(m.views)

	case viewsClosedMsg:
		m.status = "controller stopped"
		return m, tea.Quit

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "error"
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// applyView replaces the worklist and keeps the cursor on the same nudge when it survives.
func (m Model) applyView(view app.View) Model {
	selectedID := ""
	if n, ok := m.selectedNudge(); ok {
		selectedID = n.ID
	}
	m.view = view
	m.received = true
	m.selected = clamp(m.selected, 0, len(view.Nudges)-1)
	for i, n := range view.Nudges {
		if n.ID == selectedID {
			m.selected = i
			break
		}
	}
	switch {
	case view.IsLoading:
		m.status = "refreshing..."
	case m.status == "loading..." || m.status == "refreshing...":
		m.status = "ready"
	}
	return m
}

// handleKey handles normal-mode key input.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.unsub != nil {
			m.unsub()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selected = clamp(m.selected+1, 0, len(m.view.Nudges)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selected = clamp(m.selected-1, 0, len(m.view.Nudges)-1)
		return m, nil
	case key.Matches(msg, m.keys.top):
		m.selected = 0
		return m, nil
	case key.Matches(msg, m.keys.bottom):
		m.selected = max(0, len(m.view.Nudges)-1)
		return m, nil
	case key.Matches(msg, m.keys.nextPreset):
		m.preset = (m.preset + 1) % len(m.presets)
		m.status = "snooze preset: " + m.presets[m.preset].Name
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing..."
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.snooze):
		n, ok := m.selectedNudge()
		if !ok {
			return m, nil
		}
		preset := m.presets[m.preset]
		m.status = "snoozing..."
		return m, m.snoozeCmd(n.ID, preset)
	case key.Matches(msg, m.keys.dismiss):
		n, ok := m.selectedNudge()
		if !ok {
			return m, nil
		}
		m.status = "dismissing..."
		return m, m.dismissCmd(n.ID)
	default:
		return m, nil
	}
}

func (m Model) selectedNudge() (domain.Nudge, bool) {
	if len(m.view.Nudges) == 0 {
		return domain.Nudge{}, false
	}
	return m.view.Nudges[clamp(m.selected, 0, len(m.view.Nudges)-1)], true
}

func (m Model) refreshCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if _, err := svc.Refresh(ctx); err != nil {
			return actionMsg{err: fmt.Errorf("refresh: %w", err)}
		}
		return actionMsg{status: "refreshed"}
	}
}

func (m Model) snoozeCmd(id string, preset domain.SnoozePreset) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if _, err := svc.Snooze(ctx, id, preset.Duration); err != nil {
			return actionMsg{err: fmt.Errorf("snooze %s: %w", id, err)}
		}
		return actionMsg{status: fmt.Sprintf("snoozed %s (%s)", id, preset.Name)}
	}
}

func (m Model) dismissCmd(id string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if _, err := svc.Dismiss(ctx, id); err != nil {
			return actionMsg{err: fmt.Errorf("dismiss %s: %w", id, err)}
		}
		return actionMsg{status: "dismissed " + id}
	}
}

// waitForView blocks for the next published view.
func waitForView(views <-chan app.View) tea.Cmd {
	return func() tea.Msg {
		view, ok := <-views
		if !ok {
			return viewsClosedMsg{}
		}
		return viewMsg{view: view}
	}
}

// View renders the dashboard.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the full dashboard frame.
func (m Model) render() string {
	if !m.ready || !m.received {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	errorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	sections := []string{titleStyle.Render("nudger") + "  " + renderSummary(m.view.Summary, muted)}
	switch {
	case !m.view.Enabled:
		sections = append(sections, "", lipgloss.NewStyle().Foreground(muted).Render("Nudges are turned off."))
	case len(m.view.Nudges) == 0 && m.view.IsLoading:
		sections = append(sections, "", statusStyle.Render("Loading nudges..."))
	case len(m.view.Nudges) == 0:
		sections = append(sections, "", lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("All caught up."))
	default:
		sections = append(sections, "")
		sections = append(sections, m.renderList(muted)...)
	}

	status := m.status
	if m.view.IsLoading && m.err == nil {
		status = "refreshing..."
	}
	statusLine := statusStyle.Render(status + "  •  snooze: " + m.presets[m.preset].Name)
	if m.err != nil {
		statusLine = errorStyle.Render("error: " + m.err.Error())
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(statusLine + "\n" + helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// renderSummary renders the per-priority counts using priority colors.
func renderSummary(summary domain.NudgeSummary, muted color.Color) string {
	counts := map[domain.Priority]int{
		domain.PriorityHigh:   summary.High,
		domain.PriorityMedium: summary.Medium,
		domain.PriorityLow:    summary.Low,
	}
	parts := []string{lipgloss.NewStyle().Foreground(muted).Render(fmt.Sprintf("%d total", summary.Total))}
	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow} {
		d := domain.DescribePriority(p)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(d.Color))
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", counts[p], strings.ToLower(d.Label))))
	}
	return strings.Join(parts, " · ")
}

// renderList renders one line per nudge with the cursor on the selected row.
func (m Model) renderList(muted color.Color) []string {
	subStyle := lipgloss.NewStyle().Foreground(muted)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	width := m.width
	if width <= 0 {
		width = 100
	}
	lines := make([]string, 0, len(m.view.Nudges))
	for i, n := range m.view.Nudges {
		td := domain.Descriptor(n.Type)
		pd := domain.DescribePriority(n.Priority)
		cursor := "  "
		titleStyle := lipgloss.NewStyle()
		if i == m.selected {
			cursor = "> "
			titleStyle = selectedStyle
		}
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color(td.Color)).Render(td.Icon)
		badge := lipgloss.NewStyle().Foreground(lipgloss.Color(pd.Color)).Render(fmt.Sprintf("%-6s", pd.Label))

		detail := n.Subtitle
		if hint := m.dueHint(n); hint != "" {
			if detail != "" {
				detail += " · "
			}
			detail += hint
		}
		title := truncate(n.Title, max(10, width/2))
		line := cursor + icon + " " + badge + " " + titleStyle.Render(title)
		if detail != "" {
			remaining := width - lipgloss.Width(line) - 3
			if remaining > 4 {
				line += "  " + subStyle.Render(truncate(detail, remaining))
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// dueHint renders the due date or overdue age of one nudge.
func (m Model) dueHint(n domain.Nudge) string {
	if n.DueDate != nil {
		due := n.DueDate.In(m.loc)
		today := domain.DateOf(m.now().In(m.loc))
		switch days := domain.DateOf(due).DaysUntil(today); {
		case days == 0:
			return "due today"
		case days == 1:
			return "due tomorrow"
		case days < 0:
			return fmt.Sprintf("due %s (%dd ago)", due.Format("Jan 2"), -days)
		default:
			return "due " + due.Format("Jan 2")
		}
	}
	if n.DaysOverdue != nil && n.Type != domain.NudgeTypeStaleLead {
		return fmt.Sprintf("%dd overdue", *n.DaysOverdue)
	}
	return ""
}

// clamp clamps v into [minV, maxV], preferring minV when the range is empty.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
