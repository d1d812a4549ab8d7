package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smagulov/fieldtask/internal/cache"
	"github.com/smagulov/fieldtask/internal/config"
	"github.com/smagulov/fieldtask/internal/evidence"
	"github.com/smagulov/fieldtask/internal/geo"
	"github.com/smagulov/fieldtask/internal/models"
	"github.com/smagulov/fieldtask/internal/session"
	"github.com/smagulov/fieldtask/internal/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg   *config.Config
	store *cache.Store
)

var rootCmd = &cobra.Command{
	Use:   "fieldtask",
	Short: "Field service task console",
	Long: `fieldtask is the field-technician console for service tasks.
Start and close work sessions, capture before/after photos, signatures and
geolocation, and sync everything to dispatch — even when the network isn't
there when you are.`,
}

// initStore loads config and opens the local store, panicking on failure
func initStore() {
	if store != nil {
		return
	}
	cfg = config.Load()
	s, err := cache.Open(cfg.DBPath, cfg.CacheMaxBytes)
	if err != nil {
		panic(err)
	}
	store = s
}

// withStore wraps a command function to open the local store first
func withStore(fn func(*cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		initStore()
		fn(cmd, args)
	}
}

// controllerFor assembles a lifecycle controller for one task, wired to the
// configured remote service and location agent when present.
func controllerFor(task *models.Task) *session.Controller {
	var remote *syncer.Client
	if cfg.RemoteURL != "" {
		remote = syncer.New(cfg.RemoteURL)
	}

	var capturer *geo.Capturer
	if cfg.GeoURL != "" {
		capturer = geo.NewCapturer(geo.NewHTTPProvider(cfg.GeoURL), cfg.GeoTimeout, cfg.GeoStale)
	}

	ctrl := session.New(session.Options{
		Store:  store,
		Remote: remote,
		Geo:    capturer,
	})
	ctrl.Initialize(cache.Key(task.ID), task.ServerID, nil, models.TaskStatus(task.Status))
	return ctrl
}

func newEncoder() *evidence.Encoder {
	return evidence.NewEncoder(cfg.PhotoMaxDim)
}

// syncTaskStatus writes the derived status back onto the local task record.
func syncTaskStatus(task *models.Task, ctrl *session.Controller) {
	task.Status = string(ctrl.Status())
	if err := store.DB().Save(task).Error; err != nil {
		fmt.Printf("Warning: failed to save task status: %v\n", err)
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldtask %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
