package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vk/bootforge/internal/app"
)

// Execute runs the command line args. Every returned error is an *ExitError.
// Command output goes to outW, logs to logW.
func Execute(ctx context.Context, args []string, outW, logW io.Writer) error {
	root := NewRootCommand(outW, logW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return usageError(err)
}

// NewRootCommand builds the bootforge command tree.
func NewRootCommand(outW, logW io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "bootforge [TARGET...]",
		Short: "Incremental build engine for cluster bootstrap artifacts",
		Long: `bootforge brings targets declared in HCL build files up to date.

Without arguments it builds the "default" group. A target is rebuilt when its
output is missing, a dependency changed or was rebuilt, or its dependency set
changed since the last successful build.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, args, logW)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.Run(cmd.Context()); err != nil {
				return buildError(err)
			}
			return nil
		},
	}
	root.SetOut(outW)
	root.SetErr(logW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newGraphCommand(opts, logW),
		newRegistryCommand(opts, logW),
		newWatchCommand(opts, logW),
	)
	return root
}

func newApp(cmd *cobra.Command, opts *options, targets []string, logW io.Writer) (*app.App, error) {
	slog.Debug("CLI parser finished.", "command", cmd.Name(), "targets", targets)
	cfg, err := opts.appConfig(cmd.Flags(), targets)
	if err != nil {
		return nil, usageError(err)
	}
	a, err := app.New(cmd.Context(), logW, cfg)
	if err != nil {
		return nil, usageError(err)
	}
	return a, nil
}

// buildError maps a failed run to exit code 1 and anything that stopped
// the build before it ran, such as resolution errors, to 2.
func buildError(err error) *ExitError {
	if errors.Is(err, app.ErrBuildFailed) {
		return &ExitError{Code: ExitBuildFailed, Message: err.Error()}
	}
	return usageError(err)
}

func newGraphCommand(opts *options, logW io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph [TARGET...]",
		Short: "Print the resolved dependency graph without building",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, args, logW)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Graph(cmd.Context(), cmd.OutOrStdout(), format); err != nil {
				return usageError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", app.FormatText, "Output format: text or yaml.")
	return cmd
}

func newRegistryCommand(opts *options, logW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the result registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [TARGET...]",
		Short: "Print recorded results as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, nil, logW)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.ShowRegistry(cmd.Context(), cmd.OutOrStdout(), args...); err != nil {
				return &ExitError{Code: ExitBuildFailed, Message: err.Error()}
			}
			return nil
		},
	})
	return cmd
}

func newWatchCommand(opts *options, logW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [TARGET...]",
		Short: "Rebuild targets whenever workspace files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, args, logW)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Watch(cmd.Context()); err != nil {
				return &ExitError{Code: ExitBuildFailed, Message: err.Error()}
			}
			return nil
		},
	}
}
