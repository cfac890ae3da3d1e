package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

var serveOnce bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run background index maintenance",
	Long: `Runs the scheduler, which periodically rebuilds indexes whose documents
changed and drops indexes of conversations without documents.

The schedule is scheduler.refresh_schedule in the config (default @every 5m).
With --once the refresh task runs a single time and the command exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveOnce, "once", false, "run the refresh task once and exit")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if app == nil || app.Scheduler == nil {
		return embeddingError("scheduler")
	}

	if serveOnce {
		result, err := app.Scheduler.RunNow(cmd.Context(), domain.TaskIDIndexRefresh)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("index refresh failed: %s", result.Error)
		}
		cmd.Printf("Index refresh finished in %s\n", result.EndedAt.Sub(result.StartedAt))
		return nil
	}

	cmd.Println("Scheduler running (Ctrl+C to stop)")
	err := app.Scheduler.Start(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
