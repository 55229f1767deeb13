package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"floroexpress/internal/config"
	"floroexpress/internal/domain"
)

// Exit codes returned through ExitError.
const (
	exitFailure     = 1
	exitDiagnostics = 2
	exitDemo        = 3
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

var (
	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)
)

// NewRootCmd creates the floroexpress command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:          "floroexpress",
		Short:        "FloroExpress print-and-deliver client",
		Long:         "FloroExpress runs the print-and-deliver desktop client, a scripted demo journey and log maintenance.",
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate(fmt.Sprintf("floroexpress version %s\n", version))
	root.PersistentFlags().String("config", "", "Settings file (default ~/.floroexpress/settings.yaml)")

	root.AddCommand(NewAppCmd())
	root.AddCommand(NewDemoCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewDiagnosticsCmd())
	return root
}

// loadSettings reads the settings file named by --config and applies
// environment overrides.
func loadSettings(cmd *cobra.Command) (domain.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	settings, err := config.NewYAMLStore(path).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return config.ApplyEnv(settings, nil), nil
}
