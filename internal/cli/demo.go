package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"floroexpress/internal/bootstrap"
	"floroexpress/internal/config"
	"floroexpress/internal/diagnostics"
	"floroexpress/internal/logsink"
)

// NewDemoCmd creates the "demo" subcommand.
func NewDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run one print-and-deliver journey against the simulated server",
		Args:  cobra.NoArgs,
		RunE:  runDemo,
	}

	cmd.Flags().Duration("timeout", 30*time.Second, "Abort the journey after this long")
	cmd.Flags().BoolP("verbose", "v", false, "Write process logs to stderr")

	return cmd
}

func runDemo(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	settings = bootstrap.DemoSettings(settings)

	logger := zap.NewNop()
	if verbose {
		if logger, err = logsink.NewLogger(settings.LogLevel); err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	app := bootstrap.Assemble(bootstrap.Deps{
		Settings: settings,
		Store:    config.NewYAMLStore(path),
		Logger:   logger,
		LogStore: logsink.NewMemStore(settings.LogCap),
		Checker:  diagnostics.NewChecker(),
	})
	defer app.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	fmt.Fprintln(out, sectionStyle.Render("FloroExpress demo"))
	started := time.Now()
	err = app.RunDemo(ctx, func(step bootstrap.DemoStep) {
		line := fmt.Sprintf("%-10s %s", step.Name, step.Detail)
		fmt.Fprintf(out, "%s %s\n", successStyle.Render("✓"), infoStyle.Render(line))
	})
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", errorStyle.Render("✗"), err)
		return exitError(exitDemo, "demo failed: %s", err)
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Journey completed in %s", time.Since(started).Round(time.Millisecond))))
	return nil
}
