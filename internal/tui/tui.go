// Package tui provides a Bubble Tea TUI for browsing a session's
// tracked changes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/rewind/internal/report"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))

	stateCreatedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	stateModifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	stateDeletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	diffMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabFiles
	tabDiffs
	tabLocks
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Files", "Diffs", "Locks"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	report    *report.SessionReport
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
}

// New creates a new TUI model for the given session report.
func New(r *report.SessionReport) Model {
	return Model{report: r}
}

// Run launches the TUI for a session report.
func Run(r *report.SessionReport) error {
	_, err := tea.NewProgram(New(r), tea.WithAltScreen()).Run()
	return err
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4":
			m.activeTab = tabID(msg.String()[0] - '1')
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  rewind  session " + m.report.Stats.SessionID)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabFiles:
		return m.renderFiles()
	case tabDiffs:
		return m.renderDiffs()
	case tabLocks:
		return m.renderLocks()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	st := m.report.Stats
	var sb strings.Builder
	sb.WriteString(heading("Session Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", label)) + "  " + value + "\n")
	}
	row("Session:", st.SessionID)
	row("Started:", st.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	row("Turns:", fmt.Sprintf("%d", st.Turns))
	row("Operations:", fmt.Sprintf("%d completed, %d pending", st.Operations, st.Pending))
	row("Files touched:", fmt.Sprintf("%d", st.FilesTouched))
	row("Lines:", fmt.Sprintf("+%d / -%d", st.Totals.Added, st.Totals.Removed))
	return sb.String()
}

func stateBadge(state string) string {
	switch state {
	case "created":
		return stateCreatedStyle.Render("[CREATED]")
	case "deleted":
		return stateDeletedStyle.Render("[DELETED]")
	default:
		return stateModifiedStyle.Render("[MODIFIED]")
	}
}

func (m *Model) renderFiles() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Files (%d)", len(m.report.Files))))
	if len(m.report.Files) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, fc := range m.report.Files {
		ts := timeStyle.Render(fc.ChangedAt.Format("15:04:05"))
		counts := dimStyle.Render(fmt.Sprintf("+%d/-%d turn %d", fc.Diff.Added, fc.Diff.Removed, fc.Turn))
		sb.WriteString(fmt.Sprintf("  %s  %-10s %s  %s\n", ts, stateBadge(fc.State), fc.Path, counts))
	}
	return sb.String()
}

func (m *Model) renderDiffs() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Diffs (%d)", len(m.report.Diffs))))
	if len(m.report.Diffs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, fd := range m.report.Diffs {
		sb.WriteString(labelStyle.Render("  "+fd.Path) +
			dimStyle.Render(fmt.Sprintf("  +%d/-%d", fd.Summary.Added, fd.Summary.Removed)) + "\n")
		for _, line := range strings.Split(fd.Unified, "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				sb.WriteString("    " + diffAddStyle.Render(line) + "\n")
			case strings.HasPrefix(line, "-"):
				sb.WriteString("    " + diffDelStyle.Render(line) + "\n")
			case strings.HasPrefix(line, "@@"):
				sb.WriteString("    " + diffMetaStyle.Render(line) + "\n")
			case line != "":
				sb.WriteString("    " + line + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderLocks() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Locks (%d)", len(m.report.Locks))))
	if len(m.report.Locks) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, l := range m.report.Locks {
		ts := timeStyle.Render(l.AcquiredAt.Format("15:04:05"))
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", ts, l.Path, dimStyle.Render(l.Tool)))
	}
	return sb.String()
}
