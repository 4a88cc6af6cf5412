// -- cmd/run.go --
package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
	"github.com/xkilldash9x/soundpuff-e2e/internal/reporting"
	"github.com/xkilldash9x/soundpuff-e2e/internal/scenarios"
)

// ErrScenariosFailed is returned by run when at least one scenario failed.
var ErrScenariosFailed = errors.New("scenarios failed")

// runnerFactory builds the runner used by `run`. Tests swap it to avoid
// launching Chrome.
var runnerFactory = func(cfg *config.Config, logger *zap.Logger) *scenarios.Runner {
	return scenarios.NewRunner(cfg, logger)
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run the browser scenarios",
		Long: `Runs the named scenarios, or the whole catalogue when none are given.
Each scenario gets a fresh Chrome. Failed scenarios leave a screenshot in the
artifacts directory. The command exits non-zero when any scenario failed.`,
		Example: `  soundpuff-e2e run
  soundpuff-e2e run login create-playlist --headless=0
  soundpuff-e2e run --parallel 4 --report-format junit --report-output reports/e2e.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			list, err := scenarios.Select(scenarios.Catalogue(), args)
			if err != nil {
				return err
			}
			return runScenarios(cmd, cfg, list)
		},
	}

	runCmd.Flags().IntP("parallel", "p", 0, "scenarios run at the same time")
	runCmd.Flags().String("report-format", "", "write a report: junit or json")
	runCmd.Flags().StringP("report-output", "o", "", "report path (default stdout)")
	runCmd.Flags().String("artifacts", "", "directory for failure screenshots")
	return runCmd
}

func runScenarios(cmd *cobra.Command, cfg *config.Config, list []scenarios.Scenario) error {
	logger := observability.GetLogger()
	runner := runnerFactory(cfg, logger)

	results, runErr := runner.Run(cmd.Context(), list)
	printResults(cmd.OutOrStdout(), results)

	if cfg.Report.Format != "" {
		rep, err := reporting.New(cfg.Report.Format, cfg.Report.Output, "soundpuff-e2e")
		if err != nil {
			return err
		}
		if err := reporting.WriteAll(rep, results); err != nil {
			return fmt.Errorf("failed to write %s report: %w", cfg.Report.Format, err)
		}
		if cfg.Report.Output != "" {
			logger.Info("Report written.", zap.String("format", cfg.Report.Format), zap.String("path", cfg.Report.Output))
		}
	}

	if runErr != nil {
		return runErr
	}
	sum := scenarios.Summarize(results)
	if !sum.OK() {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, sum.Failed, len(results))
	}
	return nil
}

func printResults(w io.Writer, results []scenarios.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTATUS\tDURATION\tDETAIL")
	for _, res := range results {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		if len(res.Screenshots) > 0 {
			detail += fmt.Sprintf(" [screenshot: %s]", res.Screenshots[len(res.Screenshots)-1])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Name, res.Status, res.Duration.Round(time.Millisecond), detail)
	}
	_ = tw.Flush()

	sum := scenarios.Summarize(results)
	fmt.Fprintf(w, "\n%d passed, %d failed, %d skipped\n", sum.Passed, sum.Failed, sum.Skipped)
}
