package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/evidence"
	"github.com/smagulov/fieldtask/internal/models"
)

var photoCmd = &cobra.Command{
	Use:   "photo [task-id] [files...]",
	Short: "Attach photos to today's session",
	Long: `Attach photos to today's open session. Each stage holds at most 8
photos; extra files beyond the cap are dropped.

Examples:
  fieldtask photo 42 after1.jpg after2.jpg
  fieldtask photo 42 --stage before extra-before.jpg`,
	Args: cobra.MinimumNArgs(2),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		task, err := loadTask(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		stage, _ := cmd.Flags().GetString("stage")
		if stage != "before" && stage != "after" {
			fmt.Printf("Error: invalid stage '%s' (before|after)\n", stage)
			return
		}

		ctrl := controllerFor(task)
		active := ctrl.ActiveSession()
		if active == nil {
			fmt.Printf("Error: task #%d has no open session today\n", task.ID)
			return
		}

		encoded, err := newEncoder().EncodeAll(args[1:])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		patch := models.SessionPatch{ID: active.ID}
		var before, count int
		if stage == "before" {
			before = len(active.BeforePhotos)
			patch.BeforePhotos = evidence.AppendCapped(active.BeforePhotos, encoded...)
			count = len(patch.BeforePhotos)
		} else {
			before = len(active.AfterPhotos)
			patch.AfterPhotos = evidence.AppendCapped(active.AfterPhotos, encoded...)
			count = len(patch.AfterPhotos)
		}

		if ctrl.Upsert(context.Background(), patch) == nil {
			fmt.Println("Error: failed to attach photos")
			return
		}
		syncTaskStatus(task, ctrl)

		added := count - before
		fmt.Printf("📷 Attached %d %s photo(s) to task #%d (%d/%d)\n", added, stage, task.ID, count, models.MaxPhotos)
		if dropped := len(encoded) - added; dropped > 0 {
			fmt.Printf("   %d photo(s) dropped: the %s stage is full\n", dropped, stage)
		}
	}),
}

var signCmd = &cobra.Command{
	Use:   "sign [task-id] [file]",
	Short: "Attach the customer signature to today's session",
	Args:  cobra.ExactArgs(2),
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

		sig, err := newEncoder().EncodeFile(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if ctrl.Upsert(context.Background(), models.SessionPatch{ID: active.ID, Signature: &sig}) == nil {
			fmt.Println("Error: failed to attach signature")
			return
		}
		syncTaskStatus(task, ctrl)

		fmt.Printf("✍️  Signature attached to task #%d\n", task.ID)
	}),
}

var noteCmd = &cobra.Command{
	Use:   "note [task-id] [text]",
	Short: "Set the note on today's session",
	Args:  cobra.ExactArgs(2),
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

		note := args[1]
		if ctrl.Upsert(context.Background(), models.SessionPatch{ID: active.ID, Notes: &note}) == nil {
			fmt.Println("Error: failed to save note")
			return
		}
		syncTaskStatus(task, ctrl)

		fmt.Printf("📝 Note saved on task #%d\n", task.ID)
	}),
}

func init() {
	photoCmd.Flags().String("stage", "after", "Photo stage: before or after")
}
