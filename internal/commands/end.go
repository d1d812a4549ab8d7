package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/evidence"
	"github.com/smagulov/fieldtask/internal/models"
)

var endCmd = &cobra.Command{
	Use:   "end [task-id]",
	Short: "End today's session without completing the task",
	Long: `End today's open session. The task stays In Progress so work can
resume on another day. At least one after photo is required to close.`,
	Args: cobra.ExactArgs(1),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		task, err := loadTask(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctrl := controllerFor(task)
		active := ctrl.ActiveSession()
		if active == nil {
			fmt.Printf("Error: task #%d has no open session today\n", task.ID)
			return
		}
		if len(active.AfterPhotos) == 0 {
			fmt.Println("Error: at least one after photo is required to close (use 'fieldtask photo --stage after')")
			return
		}

		s := ctrl.End(context.Background(), false)
		if s == nil {
			fmt.Printf("Error: task #%d has no open session today\n", task.ID)
			return
		}
		syncTaskStatus(task, ctrl)

		fmt.Printf("⏹️  Ended session for task #%d: %s\n", task.ID, task.Title)
		fmt.Printf("Session: %s → %s\n", s.StartedAt.Format("15:04:05"), s.EndedAt.Format("15:04:05"))
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Close today's session and mark the task completed",
	Long: `Close today's open session and flag the task as completed.
Completion requires at least one after photo and a customer signature;
both can be attached here or beforehand with 'photo' and 'sign'.

Examples:
  fieldtask complete 42 --photo after.jpg --sign signature.png
  fieldtask complete 42   # evidence already attached earlier`,
	Args: cobra.ExactArgs(1),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		task, err := loadTask(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctrl := controllerFor(task)
		active := ctrl.ActiveSession()
		if active == nil {
			fmt.Printf("Error: task #%d has no open session today\n", task.ID)
			return
		}

		photos, _ := cmd.Flags().GetStringArray("photo")
		signPath, _ := cmd.Flags().GetString("sign")
		ctx := context.Background()
		enc := newEncoder()

		patch := models.SessionPatch{ID: active.ID}
		if len(photos) > 0 {
			encoded, err := enc.EncodeAll(photos)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			patch.AfterPhotos = evidence.AppendCapped(active.AfterPhotos, encoded...)
		}
		if signPath != "" {
			sig, err := enc.EncodeFile(signPath)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			patch.Signature = &sig
		}
		if patch.AfterPhotos != nil || patch.Signature != nil {
			if ctrl.Upsert(ctx, patch) == nil {
				fmt.Println("Error: failed to attach completion evidence")
				return
			}
			active = ctrl.ActiveSession()
			if active == nil {
				fmt.Printf("Error: task #%d has no open session today\n", task.ID)
				return
			}
		}

		// Completion gating: evidence first, then the close.
		if len(active.AfterPhotos) == 0 {
			fmt.Println("Error: at least one after photo is required to complete")
			return
		}
		if active.Signature == "" {
			fmt.Println("Error: a customer signature is required to complete (--sign)")
			return
		}

		s := ctrl.End(ctx, true)
		if s == nil {
			fmt.Printf("Error: task #%d has no open session today\n", task.ID)
			return
		}
		syncTaskStatus(task, ctrl)

		fmt.Printf("✅ Completed task #%d: %s\n", task.ID, task.Title)
		fmt.Printf("Session: %s → %s\n", s.StartedAt.Format("15:04:05"), s.EndedAt.Format("15:04:05"))
	}),
}

func init() {
	completeCmd.Flags().StringArray("photo", nil, "After photo file (repeatable)")
	completeCmd.Flags().String("sign", "", "Signature image file")
}
