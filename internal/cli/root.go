// Package cli provides the packctl command-line interface: headless
// packaging runs, diagnostics, entry discovery and icon conversion.
package cli

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pyinstaller-studio/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

// env is the state shared by subcommands once the root has initialised.
type env struct {
	cfg    config.AppConfig
	logger zerolog.Logger
	closer io.Closer
}

// NewRootCommand builds the packctl command tree.
func NewRootCommand() *cobra.Command {
	var (
		verbose bool
		state   = &env{logger: zerolog.Nop()}
	)

	root := &cobra.Command{
		Use:   "packctl",
		Short: "Package Python projects with PyInstaller",
		Long: `packctl runs PyInstaller for a saved packaging profile without the desktop UI.

Profiles are the JSON files exported by PyInstaller Studio; without --profile
the last profile saved in the app is used.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := config.LoadDefault(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if verbose {
				logger = logger.Level(zerolog.DebugLevel)
			}
			state.cfg, state.logger, state.closer = cfg, logger, closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.closer != nil {
				_ = state.closer.Close()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(state),
		newDiagnoseCommand(state),
		newEntriesCommand(),
		newIconCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
