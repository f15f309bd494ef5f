package main

import (
	"fmt"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every allocation from scratch",
		Long: `Rerun allocation for every allocated operational record and rebuild the
cached production summaries. Use this to repair drift after an interrupted
run or a restored backup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// A long pass can lose a race for the database against another
			// invocation; retry the whole pass since it is idempotent.
			var (
				bar   *progressbar.ProgressBar
				count int
			)
			err = common.WithRetry(ctx, func() error {
				var runErr error
				count, runErr = eng.RecomputeAll(ctx, func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetDescription("Recomputing allocations"),
							progressbar.OptionShowCount(),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(done)
				})
				return runErr
			}, service.RetryOptions{MaxAttempts: 3})
			if err != nil {
				return fmt.Errorf("recompute failed: %w", err)
			}

			if warnings := eng.WarningCount(); warnings > 0 {
				fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("⚠ %d consistency warnings, see logs", warnings)))
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Recomputed %d allocated records", count)))
			return nil
		},
	}
}
