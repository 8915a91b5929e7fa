package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pyinstaller-studio/internal/config"
	"pyinstaller-studio/internal/diagnostics"
	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/jobs"
	"pyinstaller-studio/internal/packager"
)

// ErrJobUnsuccessful is returned when the packaging job did not succeed.
var ErrJobUnsuccessful = errors.New("packaging did not succeed")

type runOptions struct {
	profile  string
	packager string
}

func newRunCommand(state *env) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run PyInstaller for a profile",
		Long: `Run PyInstaller for a profile and stream its output.

Interrupting packctl (Ctrl+C) asks PyInstaller to stop; build leftovers are
still removed once it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackaging(cmd, state, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "profile JSON file (default: last saved profile)")
	cmd.Flags().StringVar(&opts.packager, "packager", "", "PyInstaller executable to use instead of the resolved one")
	return cmd
}

func loadProfile(cfg config.AppConfig, path string) (domain.Settings, error) {
	store := config.NewJSONStore(cfg.SettingsPath)
	if strings.TrimSpace(path) == "" {
		return store.Load()
	}
	return store.Import(path)
}

func runPackaging(cmd *cobra.Command, state *env, opts runOptions) error {
	out := newPrinter(cmd.OutOrStdout(), defaultTheme)

	settings, err := loadProfile(state.cfg, opts.profile)
	if err != nil {
		return err
	}
	if opts.packager != "" {
		settings.PackagerPath = opts.packager
	}

	exe, err := diagnostics.NewResolver(state.cfg.ProbeTimeout).Resolve(settings)
	if err != nil {
		return fmt.Errorf("resolve packager: %w", err)
	}
	jobCfg, err := packager.NewJobConfig(settings, exe)
	if err != nil {
		return err
	}

	done := make(chan jobs.Completion, 1)
	ctrl := jobs.NewController(jobs.Options{
		Logger: state.logger,
		Sink:   func(_ string, line string) { out.Line(line) },
		Notify: func(c jobs.Completion) { done <- c },
		Started: func(job domain.Job, cfg packager.JobConfig) {
			out.Tagged(domain.LogTagInfo, "job %s: %s", job.ID, strings.Join(packager.BuildCommand(cfg), " "))
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := ctrl.Start(jobCfg); err != nil {
		return err
	}

	var completion jobs.Completion
	select {
	case completion = <-done:
	case <-ctx.Done():
		out.Tagged(domain.LogTagWarning, "interrupt received, stopping PyInstaller")
		if err := ctrl.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
			out.Tagged(domain.LogTagError, "cancel failed: %v", err)
		}
		completion = <-done
	}
	// Cleanup of a cancelled job runs after the child exits.
	ctrl.Wait()

	switch completion.Status {
	case domain.JobStatusSucceeded:
		out.Tagged(domain.LogTagSuccess, "packaging succeeded, output in %s", completion.OutputDir)
		return nil
	case domain.JobStatusCancelled:
		out.Tagged(domain.LogTagWarning, "packaging cancelled")
	default:
		out.Tagged(domain.LogTagError, "packaging failed")
	}
	return fmt.Errorf("%w: %s", ErrJobUnsuccessful, completion.Status)
}
