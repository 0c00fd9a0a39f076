package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsengine/pkg/fsengine/config"
)

var (
	cfgFile   string
	overrides config.Overrides
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fsengine-helper",
	Short: "Privileged helper for the fsengine file operation engine",
	Long: `fsengine-helper runs with elevated rights and repeats file operations that
an unprivileged engine was denied. Engines connect to it over a websocket and
send copy, move, delete, rename and link requests; the helper also answers
recycle bin queries.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/fsengine/config.json)")
	config.BindFlags(rootCmd.PersistentFlags(), &overrides)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newTrashCommand())
}

// loadConfig merges the config files with the flags given on the command line.
func loadConfig() (config.Config, error) {
	cfg, _, err := config.Load(cfgFile, &overrides, os.Environ())
	return cfg, err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of fsengine-helper`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fsengine-helper version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
