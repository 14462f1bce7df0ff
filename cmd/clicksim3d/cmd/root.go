// Package cmd holds the clicksim3d command tree.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"clicksim3d/pkg/config"
)

// app is the state shared by all commands of one invocation.
type app struct {
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the command tree with a fresh configuration loader.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoader()}

	root := &cobra.Command{
		Use:   "clicksim3d",
		Short: "Simulate annotator clicks on 3D segmentations",
		Long: `clicksim3d picks corrective clicks for volumetric segmentation predictions,
the way an annotator would: a point inside a missed region (positive) or
inside a spurious one (negative), one per volume in the batch.

Volumes are directories of 2D slices ordered by the number in their filename.

Examples:
  clicksim3d sample --pred pred/ --ref labels/
  clicksim3d sample --method threshold_only --pred pred/ --image scan/
  clicksim3d methods
  clicksim3d config init clicksim3d.yaml`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $XDG_CONFIG_HOME/clicksim3d, /etc/clicksim3d)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	a.bind("log.verbose", root, "verbose")
	a.bind("log.level", root, "log-level")

	root.AddCommand(newSampleCommand(a), newMethodsCommand(), newConfigCommand(a))
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// bind ties a flag of cmd to a configuration key.
func (a *app) bind(key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	cobra.CheckErr(a.loader.BindFlag(key, flag))
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)
	if used := a.loader.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded configuration", "file", used)
	}
	return nil
}
