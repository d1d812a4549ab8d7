package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smagulov/fieldtask/internal/models"
	"github.com/smagulov/fieldtask/internal/session"
)

// SessionFormModel is the interactive session form shown while a work
// session is open: a live clock, the evidence checklist, and the end /
// complete actions. Complete stays disabled until the evidence rules are
// satisfied; open/closed integrity itself belongs to the controller.
type SessionFormModel struct {
	width  int
	height int

	ctrl   *session.Controller
	task   *models.Task
	active *models.Session

	// Timer state
	elapsedTime time.Duration

	// Notes editing
	noteInput   textinput.Model
	editingNote bool

	// UI state
	ending     bool // user chose to end the session (keep In Progress)
	completing bool // user chose to complete the task
	exiting    bool // user left the form with the session still open
	warning    string
}

// formTickMsg is sent every second to refresh the clock and evidence counts
type formTickMsg struct{}

// NewSessionFormModel creates the session form for an open session
func NewSessionFormModel(ctrl *session.Controller, task *models.Task) SessionFormModel {
	active := ctrl.ActiveSession()

	input := textinput.New()
	input.Placeholder = "session note"
	input.CharLimit = 280
	input.Width = 48
	if active != nil {
		input.SetValue(active.Notes)
	}

	m := SessionFormModel{
		ctrl:      ctrl,
		task:      task,
		active:    active,
		noteInput: input,
	}
	if active != nil {
		m.elapsedTime = time.Since(active.StartedAt)
	}
	return m
}

// Init starts the refresh ticker
func (m SessionFormModel) Init() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return formTickMsg{}
	})
}

// Update handles messages
func (m SessionFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case formTickMsg:
		// Refresh the snapshot so photos attached from another terminal
		// show up in the checklist.
		m.active = m.ctrl.ActiveSession()
		if m.active != nil {
			m.elapsedTime = time.Since(m.active.StartedAt)
		}

		if !m.ending && !m.completing && !m.exiting {
			return m, tea.Tick(time.Second, func(t time.Time) tea.Msg {
				return formTickMsg{}
			})
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.editingNote {
			switch msg.String() {
			case "enter":
				m.saveNote()
				m.editingNote = false
				return m, nil
			case "esc":
				m.editingNote = false
				return m, nil
			default:
				var cmd tea.Cmd
				m.noteInput, cmd = m.noteInput.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "n":
			m.editingNote = true
			m.warning = ""
			return m, m.noteInput.Focus()
		case "e":
			if m.active == nil {
				m.exiting = true
				return m, tea.Quit
			}
			if len(m.active.AfterPhotos) == 0 {
				m.warning = "an after photo is required before ending"
				return m, nil
			}
			m.ending = true
			return m, tea.Quit
		case "c":
			if m.active == nil {
				m.exiting = true
				return m, tea.Quit
			}
			if gaps := missingEvidence(m.active); gaps != "" {
				m.warning = "cannot complete yet: missing " + gaps
				return m, nil
			}
			m.completing = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.exiting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *SessionFormModel) saveNote() {
	if m.active == nil {
		return
	}
	note := m.noteInput.Value()
	m.ctrl.Upsert(context.Background(), models.SessionPatch{ID: m.active.ID, Notes: &note})
	m.active = m.ctrl.ActiveSession()
}

// missingEvidence names what still blocks completion, empty when ready.
func missingEvidence(s *models.Session) string {
	var gaps []string
	if len(s.AfterPhotos) == 0 {
		gaps = append(gaps, "after photo")
	}
	if s.Signature == "" {
		gaps = append(gaps, "signature")
	}
	return strings.Join(gaps, " and ")
}

// View renders the session form
func (m SessionFormModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.active == nil {
		return "Session closed elsewhere. Press q to exit."
	}

	helpBar := m.renderHelpBar()
	contentHeight := m.height - 2

	panel := m.renderSessionPanel(m.width, contentHeight)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		panel,
		helpBar,
	)
}

// renderSessionPanel renders the main panel: clock, task, evidence checklist
func (m SessionFormModel) renderSessionPanel(width, height int) string {
	var components []string

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width)
	components = append(components, headerStyle.Render("⏱  SESSION OPEN"))

	taskStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width)
	title := fmt.Sprintf("#%d  %s", m.task.ID, m.task.Title)
	if len(title) > width-4 && width > 7 {
		title = title[:width-7] + "..."
	}
	components = append(components, taskStyle.Render(title))

	// Clock in a bordered box
	clockStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentMain)).
		Padding(0, 3)
	clock := clockStyle.Render(formatClock(m.elapsedTime))
	components = append(components, lipgloss.NewStyle().Align(lipgloss.Center).Width(width).Render(clock))

	startLine := fmt.Sprintf("Started at %s", m.active.StartedAt.Format("15:04:05"))
	if m.active.StartGeo != nil {
		startLine += fmt.Sprintf(" · %.4f, %.4f", m.active.StartGeo.Lat, m.active.StartGeo.Lng)
	}
	subStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorSecondaryText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(width)
	components = append(components, subStyle.Render(startLine))

	components = append(components, m.renderChecklist(width))

	if m.editingNote {
		noteStyle := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)
		components = append(components, noteStyle.Render("📝 "+m.noteInput.View()))
	} else if m.active.Notes != "" {
		noteStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Align(lipgloss.Center).
			Width(width)
		components = append(components, noteStyle.Render("📝 "+m.active.Notes))
	}

	if m.warning != "" {
		warnStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning)).
			Align(lipgloss.Center).
			Width(width)
		components = append(components, warnStyle.Render("⚠ "+m.warning))
	}

	content := strings.Join(components, "\n\n")

	panelStyle := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return panelStyle.Render(content)
}

// renderChecklist renders the completion evidence checklist
func (m SessionFormModel) renderChecklist(width int) string {
	items := []struct {
		label string
		done  bool
		count string
	}{
		{"before photos", len(m.active.BeforePhotos) > 0, fmt.Sprintf("%d/%d", len(m.active.BeforePhotos), models.MaxPhotos)},
		{"after photos", len(m.active.AfterPhotos) > 0, fmt.Sprintf("%d/%d", len(m.active.AfterPhotos), models.MaxPhotos)},
		{"signature", m.active.Signature != "", ""},
	}

	var lines []string
	for _, item := range items {
		icon := "○"
		color := ColorWarning
		if item.done {
			icon = "✔"
			color = ColorSuccess
		}
		line := fmt.Sprintf("%s %s", icon, item.label)
		if item.count != "" {
			line += " " + item.count
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(line))
	}

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(width).
		Render(strings.Join(lines, "   "))
}

// renderHelpBar renders the help bar at the bottom
func (m SessionFormModel) renderHelpBar() string {
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(m.width)

	helpText := "n note · e end session · c complete task · esc/q leave open"
	if m.editingNote {
		helpText = "enter save note · esc cancel"
	}

	return helpStyle.Render(helpText)
}

// formatClock formats elapsed time as hh:mm:ss
func formatClock(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
