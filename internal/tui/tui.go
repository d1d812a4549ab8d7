package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smagulov/fieldtask/internal/models"
	"github.com/smagulov/fieldtask/internal/session"
)

// RunSessionForm runs the interactive session form for an open session.
// The end/complete state transitions happen after the program exits, from
// the plain terminal, so their output is visible.
func RunSessionForm(ctrl *session.Controller, task *models.Task) error {
	model := NewSessionFormModel(ctrl, task)

	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	m, ok := finalModel.(SessionFormModel)
	if !ok {
		return nil
	}

	switch {
	case m.completing:
		s := ctrl.End(context.Background(), true)
		if s == nil {
			return fmt.Errorf("session was no longer open")
		}
		fmt.Printf("✅ Completed task #%d: %s\n", task.ID, task.Title)
		fmt.Printf("Session: %s → %s\n", s.StartedAt.Format("15:04:05"), s.EndedAt.Format("15:04:05"))
	case m.ending:
		s := ctrl.End(context.Background(), false)
		if s == nil {
			return fmt.Errorf("session was no longer open")
		}
		fmt.Printf("⏹️  Ended session for task #%d: %s\n", task.ID, task.Title)
		fmt.Printf("Session: %s → %s\n", s.StartedAt.Format("15:04:05"), s.EndedAt.Format("15:04:05"))
	case m.exiting:
		fmt.Printf("\n💡 Session is still open for task #%d: %s\n", task.ID, task.Title)
		fmt.Printf("   Use 'fieldtask status %d' to check it or 'fieldtask end %d' to close it.\n", task.ID, task.ID)
	}

	return nil
}
