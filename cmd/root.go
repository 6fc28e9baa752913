// Package cmd provides the templpack command-line interface.
//
// Configuration System:
//
//	Values are read from several sources, highest priority first:
//	1. Command-line flags (--config, --log-level, ...)
//	2. TEMPLPACK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TEMPLPACK_MANIFEST_STORE, ...),
//	   including those loaded from a .env file
//	4. Configuration file (.templpack.yml)
//
// Environment Variables:
//
//	TEMPLPACK_CONFIG_FILE: Path to custom configuration file
//	TEMPLPACK_ENVIRONMENT: dev or prod
//	TEMPLPACK_WATCH_INTERVAL: Config check interval in watch mode
//	And every other key following the TEMPLPACK_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "templpack",
	Short: "Build webpack entry points from the assets your templates use",
	Long: `templpack scans Go html/template and templ files for asset declarations,
generates a webpack configuration with one entry point per asset and runs
webpack, keeping the configuration in sync while you edit templates.

Declare assets in templates:
  <script src="{{ asset "@app/js/main.js" }}"></script>
  <link href={ asset("@app/css/main.less", "css", "admin") }/>

Quick Start:
  templpack assets        List the assets found in templates
  templpack compile       Build once and store the manifest
  templpack watch         Rebuild on every template or asset change
  templpack dev-server    Run webpack-dev-server with live configuration
  templpack manifest      Print the stored manifest or one asset URL

Documentation: https://github.com/conneroisu/templpack`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .templpack.yml, can also use TEMPLPACK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringP("environment", "e", "", "environment name; dev suppresses template errors (default dev)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("environment"))
}

// initConfig initializes the configuration system.
//
// The config file is the --config flag, then TEMPLPACK_CONFIG_FILE, then
// .templpack.yml in the current directory. A .env file in the current
// directory is loaded first; variables already set in the environment win.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Warning: cannot load .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TEMPLPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".templpack")
	}

	viper.SetEnvPrefix("TEMPLPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Without a config file the defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}
