package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show a task's session history and sync state",
	Args:  cobra.ExactArgs(1),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		task, err := loadTask(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctrl := controllerFor(task)
		sessions := ctrl.Sessions()

		fmt.Printf("📋 Task #%d: %s [%s]\n", task.ID, task.Title, ctrl.Status())
		if task.ServerID != "" {
			fmt.Printf("Dispatch id: %s\n", task.ServerID)
		} else {
			fmt.Println("Not linked to dispatch - sessions are cache-only")
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions yet.")
			return
		}

		fmt.Printf("Sessions (%d):\n", len(sessions))
		for _, s := range sessions {
			state := "open"
			span := s.StartedAt.Format("15:04")
			if s.EndedAt != nil {
				state = "closed"
				span = fmt.Sprintf("%s → %s", s.StartedAt.Format("15:04"), s.EndedAt.Format("15:04"))
			}
			fmt.Printf("  %s  %s (%s)  before:%d after:%d", s.DateKey, span, state, len(s.BeforePhotos), len(s.AfterPhotos))
			if s.Signature != "" {
				fmt.Printf("  signed")
			}
			fmt.Println()
		}

		if active := ctrl.ActiveSession(); active != nil {
			elapsed := time.Since(active.StartedAt)
			fmt.Printf("⏱️  Session open since %s (%s)\n", active.StartedAt.Format("15:04:05"), formatDuration(elapsed))
			missing := completionGaps(active)
			if len(missing) > 0 {
				fmt.Printf("   To complete: %s\n", joinGaps(missing))
			}
		}
	}),
}

// completionGaps lists what evidence is still missing before the session can
// be completed.
func completionGaps(s *models.Session) []string {
	var missing []string
	if len(s.AfterPhotos) == 0 {
		missing = append(missing, "after photo")
	}
	if s.Signature == "" {
		missing = append(missing, "signature")
	}
	return missing
}

func joinGaps(gaps []string) string {
	switch len(gaps) {
	case 1:
		return gaps[0]
	default:
		return gaps[0] + ", " + gaps[1]
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d.Hours() >= 1 {
		return fmt.Sprintf("%.1fh", d.Hours())
	} else if d.Minutes() >= 1 {
		return fmt.Sprintf("%.0fm", d.Minutes())
	} else {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
}
