package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"floroexpress/internal/bootstrap"
	"floroexpress/internal/logsink"
)

// NewLogsCmd creates the "logs" command group.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Export or clear the application log",
	}
	cmd.AddCommand(newLogsExportCmd())
	cmd.AddCommand(newLogsClearCmd())
	return cmd
}

func newLogsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write retained log entries as JSON",
		Args:  cobra.NoArgs,
		RunE:  runLogsExport,
	}

	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.Flags().String("level", "", "Only entries of this level")
	cmd.Flags().String("component", "", "Only entries of this component")
	cmd.Flags().Duration("since", 0, "Only entries newer than this")
	cmd.Flags().Int("limit", logsink.DefaultLimit, "Newest entries to keep when filtering")

	return cmd
}

func newLogsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every retained log entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, closeSink, err := openSink(cmd)
			if err != nil {
				return err
			}
			defer closeSink()

			count := sink.Len()
			if err := sink.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear logs: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Cleared %d log entries", count)))
			return nil
		},
	}
}

func runLogsExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	filter, filtered, err := exportFilter(cmd)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cmd)
	if err != nil {
		return err
	}
	defer closeSink()

	export := sink.Export()
	if filtered {
		export = sink.ExportMatching(filter)
	}

	data, err := export.JSON()
	if err != nil {
		return err
	}

	if output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Exported %d log entries to %s", export.TotalCount, output)))
	return nil
}

// exportFilter builds the entry filter from flags and reports whether any
// criterion was given.
func exportFilter(cmd *cobra.Command) (logsink.Filter, bool, error) {
	var filter logsink.Filter

	if level, _ := cmd.Flags().GetString("level"); level != "" {
		parsed, err := logsink.ParseLevel(level)
		if err != nil {
			return filter, false, exitError(exitFailure, "%s", err)
		}
		filter.Level = parsed
	}
	filter.Component, _ = cmd.Flags().GetString("component")
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		filter.Since = time.Now().Add(-since).UTC()
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	filtered := filter.Level != "" || filter.Component != "" || !filter.Since.IsZero()
	return filter, filtered, nil
}

// openSink loads the durable log store configured in settings.
func openSink(cmd *cobra.Command) (*logsink.Sink, func(), error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := bootstrap.OpenLogStore(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("open log store: %w", err)
	}

	sink := logsink.New(store, settings.LogCap, zap.NewNop())
	if err := sink.Load(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("load logs: %w", err)
	}
	return sink, func() { _ = store.Close() }, nil
}
