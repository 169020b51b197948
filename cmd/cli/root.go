// Package cli provides the recon command-line interface: one-shot scans,
// scheduled scans and an inspection of the resolved concurrency limit.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/logging"
)

const envPrefix = "RECON"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	// appConfig is the layered configuration for the running command.
	appConfig *config.Config
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recon",
	Short: "Concurrent network prober",
	Long: `recon probes IP:port targets concurrently, keeping as many probes in
flight as the open file descriptor limit allows. Probes that fail because the
host ran out of descriptors or buffers are parked and retried later instead of
being reported as closed.`,
	Version:            getVersion(),
	SilenceUsage:       true,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: closeLogger,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"verbose":    "verbose",
		"log_level":  "log-level",
		"log_format": "log-format",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RECON_TIMEOUT, RECON_LOG_LEVEL, ...
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig builds appConfig from the config file, then environment and
// flags, and installs the default logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return err
	}

	if viper.IsSet("log_level") {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("log_level"))
	} else if viper.GetBool("verbose") {
		cfg.Logging.Level = logging.LevelDebug
	}
	if viper.IsSet("log_format") {
		cfg.Logging.Format = logging.LogFormat(viper.GetString("log_format"))
	}

	if err := applyScanOverrides(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetDefault(logger)
	logger.Debug("Configuration loaded",
		"config_file", viper.ConfigFileUsed(),
		"method", cfg.Probe.Method,
		"timeout", cfg.Engine.Timeout)

	appConfig = cfg
	return nil
}

func closeLogger(*cobra.Command, []string) error {
	return logging.Default().Close()
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
