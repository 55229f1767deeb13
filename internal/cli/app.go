package cli

import (
	"github.com/spf13/cobra"

	"floroexpress/internal/bootstrap"
	"floroexpress/internal/config"
)

// NewAppCmd creates the "app" subcommand.
func NewAppCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "app",
		Short: "Open the desktop client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}

// openApp builds the desktop client from the settings file named by --config.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	return bootstrap.NewWithStore(nil, config.NewYAMLStore(path))
}
