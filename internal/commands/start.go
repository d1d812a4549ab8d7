package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/session"
	"github.com/smagulov/fieldtask/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start an on-site work session",
	Long: `Start an on-site work session for a task. At least one before photo
is required as evidence of the site state on arrival. Opens the interactive
session form by default, use --no-ui for plain output.

Examples:
  fieldtask start 42 --photo before1.jpg --photo before2.jpg
  fieldtask start 42 --photo before.jpg --note "gate code 4711" --no-ui`,
	Args: cobra.ExactArgs(1),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		task, err := loadTask(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		photos, _ := cmd.Flags().GetStringArray("photo")
		note, _ := cmd.Flags().GetString("note")
		noUI, _ := cmd.Flags().GetBool("no-ui")

		// Capture-completeness gating is the console's job, not the
		// controller's: no session without arrival evidence.
		if len(photos) == 0 {
			fmt.Println("Error: at least one before photo is required (--photo)")
			return
		}

		encoded, err := newEncoder().EncodeAll(photos)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctrl := controllerFor(task)
		s := ctrl.Start(context.Background(), &session.StartPrefill{
			BeforePhotos: encoded,
			Notes:        note,
		})
		if s == nil {
			fmt.Printf("Error: task #%d already has an open session today\n", task.ID)
			return
		}
		syncTaskStatus(task, ctrl)

		if noUI {
			fmt.Printf("⏱️  Started session for task #%d: %s\n", task.ID, task.Title)
			fmt.Printf("Started at: %s\n", s.StartedAt.Format("15:04:05"))
			if s.StartGeo != nil {
				fmt.Printf("Position: %.5f, %.5f\n", s.StartGeo.Lat, s.StartGeo.Lng)
			}
			return
		}

		if err := tui.RunSessionForm(ctrl, task); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		syncTaskStatus(task, ctrl)
	}),
}

func init() {
	startCmd.Flags().StringArray("photo", nil, "Before photo file (repeatable)")
	startCmd.Flags().String("note", "", "Session note")
	startCmd.Flags().Bool("no-ui", false, "Start without the interactive session form")
}
