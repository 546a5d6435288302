package cmd

import (
	"github.com/spf13/cobra"

	"gridflow/pkg/config"
	"gridflow/pkg/logger"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "gridcut",
	Short: "Max-flow / min-cut solver for regular grid graphs",
	Long: `gridcut computes a maximum s-t flow and the induced minimum cut on
regularly structured grid graphs using a region-parallel push-relabel
solver, as used for image and volume segmentation.

Problem instances are YAML files carrying the grid shape, the connectivity
(4/8 in 2-D, 6/26 in 3-D), terminal weights and edge capacities.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaderOpts := []config.LoaderOption{}
		if configPath != "" {
			loaderOpts = append(loaderOpts, config.WithConfigPaths(configPath))
		}

		var err error
		cfg, err = config.NewLoader(loaderOpts...).Load()
		if err != nil {
			return err
		}

		if _, err := logger.Setup(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			FilePath:   cfg.Log.FilePath,
			MaxSizeMB:  cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		}); err != nil {
			return err
		}
		if verbose {
			return logger.SetLevel("debug")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
