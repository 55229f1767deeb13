package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"floroexpress/internal/diagnostics"
	"floroexpress/internal/domain"
)

// NewDiagnosticsCmd creates the "diagnostics" subcommand.
func NewDiagnosticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Check the configuration the client depends on",
		Args:  cobra.NoArgs,
		RunE:  runDiagnostics,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	report := diagnostics.NewChecker().Run(settings)

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case "text":
		printReport(out, report)
	default:
		return exitError(exitFailure, "unknown format %q", format)
	}

	if report.HasFailures {
		return exitError(exitDiagnostics, "diagnostics failed")
	}
	return nil
}

func printReport(out io.Writer, report domain.DiagnosticReport) {
	fmt.Fprintln(out, sectionStyle.Render("Diagnostics"))
	for _, item := range report.Items {
		var mark string
		switch item.Status {
		case domain.DiagnosticStatusPass:
			mark = successStyle.Render("✓")
		case domain.DiagnosticStatusWarn:
			mark = warningStyle.Render("!")
		default:
			mark = errorStyle.Render("✗")
		}
		fmt.Fprintf(out, "%s %s: %s\n", mark, item.Name, item.Message)
		if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
			fmt.Fprintf(out, "  %s\n", infoStyle.Render(item.Hint))
		}
	}
}
