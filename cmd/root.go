// Package cmd provides the grow command-line interface.
//
// Configuration is read from .grow.yml in the working directory, or from the
// file named by --config or GROW_CONFIG_FILE. Every key can be overridden by
// an environment variable with the GROW_ prefix (GROW_SERVER_PORT,
// GROW_BUILD_OUT_DIR) and variables may be kept in a .env file. Flags take
// precedence over all of them.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grow",
	Short: "A static site generator for localized content pods",
	Long: `grow builds static sites from pods: collections of YAML, Markdown and
HTML documents rendered through views, with per-locale routing and
message catalogs.

Quick Start:
  grow init                    Create a new pod
  grow serve                   Start the development server
  grow routes                  List the pod's routes
  grow build                   Render every route to the output directory
  grow extract                 Extract translatable messages`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		used, err := config.Init(cfgFile)
		if err != nil {
			return err
		}
		if used != "" {
			cmd.PrintErrln("Using config file:", used)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .grow.yml, can also use GROW_CONFIG_FILE env var)")
	flags.String("root", ".", "pod root directory")
	flags.String("env", "", "environment name matched by @env.<name> keys")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	bindFlags(flags, map[string]string{
		"pod.root":   "root",
		"pod.env":    "env",
		"log.level":  "log-level",
		"log.format": "log-format",
	})
}

// bindFlags binds configuration keys to the named flags of set.
func bindFlags(set *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if flag := set.Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}

// loadConfig decodes the configuration and builds the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
