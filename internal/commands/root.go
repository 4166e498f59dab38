package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	err := NewRootCmd(version).Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

// NewRootCmd builds the keyward command tree. Without a subcommand it starts
// the application.
func NewRootCmd(version string) *cobra.Command {
	var opts runOptions

	root := &cobra.Command{
		Use:           app.Name,
		Short:         "Desktop authenticator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return runApp(cmd.Context(), opts)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Wire --config-dir before anything resolves settings.
			if dir, err := cmd.Flags().GetString("config-dir"); err == nil && dir != "" {
				app.SetConfigDirOverride(dir)
			}
			return app.EnsureConfigDir()
		},
	}

	root.PersistentFlags().String("config-dir", "", "Override the configuration directory (default: ~/.config/keyward)")
	root.Flags().BoolP("version", "v", false, "version for keyward")
	bindRunFlags(root.Flags(), &opts)

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewLastErrorCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewSchemaCmd(root))

	return root
}
