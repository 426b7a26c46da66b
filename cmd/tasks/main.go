// Command tasks lists and runs the scheduled maintenance tasks by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmverse/governance/internal/app"
	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Run governance maintenance tasks",
	Long: `Runs the background tasks the server schedules, once and in the foreground.

Available subcommands:
  list - Show every task and its cron spec
  run  - Run one task by name`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE:  runList,
}

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a task once",
	Long: `Runs one task immediately without taking the scheduler lock.

Example:
  tasks run close-expired-votes`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

var runTimeout time.Duration

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "abort the task after this long")
	rootCmd.AddCommand(listCmd, runCmd)
}

func newApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level)
	return app.New(cfg)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	for _, task := range a.Scheduler.Tasks() {
		fmt.Fprintf(out, "%-24s %s\n", task.Name, task.Spec)
	}
	return nil
}

func runTask(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	start := time.Now()
	if err := a.Scheduler.RunNow(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s finished in %s\n", args[0], time.Since(start).Round(time.Millisecond))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
