package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/probe"
)

// scanFlags holds the target selection shared by scan and watch.
type scanFlags struct {
	targets []string
	ports   string
	exclude []string
}

var scanOpts scanFlags

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe targets once and report every IP:port",
	Long: `Probe every address of every target on every port and report one line
per IP:port with its state: open, closed, filtered, or the error that ended
the probe.

Targets are IP addresses or CIDR prefixes. Ports use the 80,443,8000-8100
grammar. The number of concurrent probes is bounded by the open file limit
minus a safety margin, and optionally by --max-jobs and --rate.`,
	Example: `  recon scan --targets 192.168.1.0/24 --ports 22,80,443
  recon scan --targets 10.0.0.0/16 --exclude 10.0.5.0/24 --ports 1080 --method socks5 --open
  recon scan --targets 10.0.0.1 --ports 1-65535 --timeout 1.5 --format json --output out.json
  RECON_TIMEOUT=0.5 recon scan --targets 172.16.0.0/12 --ports 53 --method dns --store`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd, &scanOpts)
}

// addScanFlags registers the target and probe flags on cmd.
func addScanFlags(cmd *cobra.Command, opts *scanFlags) {
	defaults := config.Default()
	flags := cmd.Flags()

	flags.StringSliceVarP(&opts.targets, "targets", "t", nil, "IP addresses or CIDR prefixes to probe")
	flags.StringVarP(&opts.ports, "ports", "p", "22,80,443", "ports to probe, e.g. 22,80,8000-8100")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "addresses or prefixes to skip")

	flags.StringP("method", "m", defaults.Probe.Method, fmt.Sprintf("probe method %v", probe.Methods()))
	flags.Float64("timeout", defaults.Engine.Timeout.Seconds(), "per-probe timeout in seconds (env RECON_TIMEOUT)")
	flags.Int("max-jobs", 0, "cap on concurrent probes (0: descriptor limit only)")
	flags.Int("fd-margin", defaults.Engine.FDMargin, "descriptors kept back from the open file limit")
	flags.Int("rate", 0, "maximum probes started per second (0: unlimited)")
	flags.StringP("format", "f", defaults.Output.Format, "output format: text, json")
	flags.StringP("output", "o", "", "output file (default stdout)")
	flags.Bool("open", false, "report open results only")
	flags.Bool("store", false, "also store results in PostgreSQL")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("no-summary", false, "do not print the summary table")

	_ = cmd.MarkFlagRequired("targets")
}

// applyScanOverrides layers RECON_TIMEOUT and the scan flags that were set on
// cmd over cfg. Commands without scan flags only get the environment.
func applyScanOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	switch {
	case flags.Lookup("timeout") != nil && flags.Changed("timeout"):
		secs, _ := flags.GetFloat64("timeout")
		if err := setTimeout(cfg, secs); err != nil {
			return err
		}
	case viper.IsSet("timeout"):
		if err := setTimeout(cfg, viper.GetFloat64("timeout")); err != nil {
			return err
		}
	}

	if flags.Lookup("method") == nil {
		return nil
	}

	if changed(flags, "method") {
		cfg.Probe.Method, _ = flags.GetString("method")
	}
	if changed(flags, "max-jobs") {
		cfg.Engine.MaxJobs, _ = flags.GetInt("max-jobs")
	}
	if changed(flags, "fd-margin") {
		cfg.Engine.FDMargin, _ = flags.GetInt("fd-margin")
	}
	if changed(flags, "rate") {
		rate, _ := flags.GetInt("rate")
		cfg.Engine.RateLimit.Enabled = rate > 0
		cfg.Engine.RateLimit.RequestsPerSecond = rate
		cfg.Engine.RateLimit.BurstSize = rate
	}
	if changed(flags, "format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if changed(flags, "output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if changed(flags, "open") {
		cfg.Output.OpenOnly, _ = flags.GetBool("open")
	}
	if changed(flags, "no-summary") {
		noSummary, _ := flags.GetBool("no-summary")
		cfg.Output.Summary = !noSummary
	}
	if changed(flags, "store") {
		cfg.Database.Enabled, _ = flags.GetBool("store")
	}
	if changed(flags, "metrics-addr") {
		addr, _ := flags.GetString("metrics-addr")
		cfg.Metrics.Enabled = addr != ""
		if addr != "" {
			cfg.Metrics.ListenAddr = addr
		}
	}
	return nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	return flags.Lookup(name) != nil && flags.Changed(name)
}

func setTimeout(cfg *config.Config, secs float64) error {
	if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return errors.ErrConfigInvalid("timeout", secs)
	}
	cfg.Engine.Timeout = time.Duration(secs * float64(time.Second))
	return nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	r, err := newRunner(ctx, appConfig, scanOpts)
	if err != nil {
		return err
	}
	defer r.close()

	return r.serve(ctx, func() error {
		_, err := r.runOnce(ctx, cmd.ErrOrStderr())
		return err
	})
}
