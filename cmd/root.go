package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden from the embedded VERSION file at startup.
var Version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:           "mediacopy",
	Short:         "Sort photos and videos into folders by capture date",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version onto the root command for --version.
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default is <user config dir>/mediacopy/mediacopy.toml)")
}
