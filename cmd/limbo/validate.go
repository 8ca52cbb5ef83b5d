package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/limbo/bootstrap"
	"github.com/artpar/limbo/config"
	"github.com/artpar/limbo/core/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the project",
	Long: `Validate the limbo project named by the configuration.

Checks:
  - YAML syntax is valid
  - Connections match a registered type and are complete
  - Columns name known generators and carry well-typed options
  - Seed file paths are relative and exist, or resolve through a path alias
  - References and source connections exist
  - Connections are reachable (optional)

Examples:
  limbo validate
  limbo validate --project ./warehouse --check-connections
  limbo validate --watch --metrics-textfile /var/lib/node_exporter/limbo.prom`,
	RunE: runValidate,
}

var (
	validateWatch            bool
	validateCheckConnections bool
	validateMetricsTextfile  string
)

var errProjectInvalid = errors.New("project is invalid")

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "re-validate when the config or project changes")
	validateCmd.Flags().BoolVar(&validateCheckConnections, "check-connections", false, "check that every connection is reachable")
	validateCmd.Flags().StringVar(&validateMetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after each pass")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateMetricsTextfile != "" {
		// Passed through the environment so that reloads keep it.
		abs, err := filepath.Abs(validateMetricsTextfile)
		if err != nil {
			return err
		}
		os.Setenv("LIMBO_METRICS_TEXTFILE", abs)
	}

	app, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ok := validateOnce(cmd.Context(), app, out)
	if !validateWatch {
		if !ok {
			return errProjectInvalid
		}
		return nil
	}

	holder, err := config.NewHolder(cfgFile, projectPath, app.Logger)
	if err != nil {
		return err
	}
	defer holder.Stop()

	holder.OnChange(func(cfg *config.Config) {
		app.Metrics.RecordReload(nil)
		app.Reconfigure(cfg)
		validateOnce(cmd.Context(), app, out)
	})
	holder.OnReloadError(func(err error) {
		app.Metrics.RecordReload(err)
		fmt.Fprintf(out, "  %s %v\n\n", crossMark, err)
	})
	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	app.Logger.Info().Msg("stopped watching")
	return nil
}

// validateOnce runs one validation pass and prints its outcome. It reports
// whether the project, and the connections when requested, are valid.
func validateOnce(ctx context.Context, app *bootstrap.App, out io.Writer) bool {
	cfg := app.Config()
	fmt.Fprintf(out, "Validating %s...\n\n", cfg.Project)

	project, err := app.Validate(ctx)
	if err != nil {
		printValidationError(out, err)
		fmt.Fprintln(out)
		return false
	}

	fmt.Fprintf(out, "  %s Connections: %d\n", checkMark, len(project.Connections))
	fmt.Fprintf(out, "  %s Tables: %d\n", checkMark, len(project.Tables))
	fmt.Fprintf(out, "  %s Seeds: %d\n", checkMark, len(project.Seeds))
	fmt.Fprintf(out, "  %s Sources: %d\n", checkMark, len(project.Sources))

	ok := true
	if validateCheckConnections {
		for _, res := range app.CheckConnections(ctx, project) {
			if res.Err != nil {
				ok = false
				fmt.Fprintf(out, "  %s Connection %s (%s) reachable\n", crossMark, res.Name, res.Type)
				fmt.Fprintf(out, "      Error: %v\n", res.Err)
				continue
			}
			fmt.Fprintf(out, "  %s Connection %s (%s) reachable\n", checkMark, res.Name, res.Type)
		}
	}

	fmt.Fprintln(out)
	if ok {
		fmt.Fprintln(out, "Project is valid.")
	}
	return ok
}

func printValidationError(out io.Writer, err error) {
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(out, "  %s %v\n", crossMark, err)
		return
	}
	for _, fe := range verr.Errors {
		fmt.Fprintf(out, "  %s %v\n", crossMark, fe)
	}
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
