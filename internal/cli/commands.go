package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pyinstaller-studio/internal/diagnostics"
	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/iconconv"
	"pyinstaller-studio/internal/projectscan"
)

// ErrDiagnosticsFailed is returned when at least one check fails.
var ErrDiagnosticsFailed = errors.New("diagnostics reported failures")

func newDiagnoseCommand(state *env) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check PyInstaller and the profile paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadProfile(state.cfg, profile)
			if err != nil {
				return err
			}

			checker := diagnostics.NewChecker(diagnostics.NewResolver(state.cfg.ProbeTimeout))
			report := checker.Run(context.Background(), settings)
			printReport(newPrinter(cmd.OutOrStdout(), defaultTheme), report)
			if report.HasFailures {
				return ErrDiagnosticsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile JSON file (default: last saved profile)")
	return cmd
}

func printReport(out *printer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusPass {
			out.Tagged(domain.LogTagSuccess, "ok    %-18s %s", item.Name, item.Message)
		} else {
			out.Tagged(domain.LogTagError, "fail  %-18s %s", item.Name, item.Message)
		}
		if item.Hint != "" {
			out.Tagged(domain.LogTagDebug, "      %s", item.Hint)
		}
	}
}

func newEntriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entries <project-dir>",
		Short: "List candidate entry scripts of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := projectscan.EntryCandidates(args[0])
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}
}

func newIconCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "icon <image> [output.ico]",
		Short: "Convert a PNG, JPEG or GIF image into an .ico file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := iconconv.DefaultTarget(args[0])
			if len(args) == 2 {
				target = args[1]
			}
			if err := iconconv.Convert(args[0], target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
}
