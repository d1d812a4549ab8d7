package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Register a service task on this device",
	Long: `Register a service task on this device so sessions can be tracked
against it. Pass --server-id when the task already exists in dispatch;
without it the task stays cache-only until it is linked.

Examples:
  fieldtask add "Boiler inspection" --client "Aqua Ltd" --site "12 Main St"
  fieldtask add "AC repair" --server-id 7f3a2b`,
	Args: cobra.ExactArgs(1),
	Run: withStore(func(cmd *cobra.Command, args []string) {
		client, _ := cmd.Flags().GetString("client")
		site, _ := cmd.Flags().GetString("site")
		serverID, _ := cmd.Flags().GetString("server-id")

		task := models.Task{
			Title:    args[0],
			Client:   client,
			Site:     site,
			Status:   string(models.StatusNew),
			ServerID: serverID,
		}
		if err := store.DB().Create(&task).Error; err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Printf("📋 Added task #%d: %s\n", task.ID, task.Title)
		if serverID == "" {
			fmt.Println("   No dispatch id yet - sessions will stay cache-only until linked.")
		}
	}),
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List service tasks on this device",
	Run: withStore(func(cmd *cobra.Command, args []string) {
		var tasks []models.Task
		if err := store.DB().Find(&tasks).Error; err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks yet. Add one with 'fieldtask add'.")
			return
		}

		for _, task := range tasks {
			icon := "○"
			switch models.TaskStatus(task.Status) {
			case models.StatusInProgress:
				icon = "⏱"
			case models.StatusCompleted:
				icon = "✅"
			}
			fmt.Printf("%s #%d %s", icon, task.ID, task.Title)
			if task.Client != "" {
				fmt.Printf(" · %s", task.Client)
			}
			if task.Site != "" {
				fmt.Printf(" · %s", task.Site)
			}
			fmt.Printf(" [%s]\n", task.Status)
		}
	}),
}

// loadTask parses a task-id argument and fetches the task.
func loadTask(arg string) (*models.Task, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid task ID '%s'", arg)
	}

	var task models.Task
	if err := store.DB().First(&task, uint(id)).Error; err != nil {
		return nil, fmt.Errorf("task #%d not found", id)
	}
	return &task, nil
}

func init() {
	addCmd.Flags().String("client", "", "Client name")
	addCmd.Flags().String("site", "", "Site address")
	addCmd.Flags().String("server-id", "", "Task id in the dispatch system")
}
