package cli

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addScanFlags(cmd, &scanFlags{})
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyScanOverrides(t *testing.T) {
	cmd := newFlagCommand(t,
		"--targets", "10.0.0.0/24",
		"--method", "socks5",
		"--timeout", "1.5",
		"--max-jobs", "200",
		"--rate", "50",
		"--format", "json",
		"--output", "out.json",
		"--open",
		"--store",
		"--metrics-addr", ":9100",
		"--no-summary",
	)

	cfg := config.Default()
	require.NoError(t, applyScanOverrides(cmd, cfg))

	assert.Equal(t, "socks5", cfg.Probe.Method)
	assert.Equal(t, 1500*time.Millisecond, cfg.Engine.Timeout)
	assert.Equal(t, 200, cfg.Engine.MaxJobs)
	assert.True(t, cfg.Engine.RateLimit.Enabled)
	assert.Equal(t, 50, cfg.Engine.RateLimit.RequestsPerSecond)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "out.json", cfg.Output.Path)
	assert.True(t, cfg.Output.OpenOnly)
	assert.False(t, cfg.Output.Summary)
	assert.True(t, cfg.Database.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.ListenAddr)
}

func TestApplyScanOverrides_UnsetFlagsKeepConfig(t *testing.T) {
	cmd := newFlagCommand(t, "--targets", "10.0.0.1")

	cfg := config.Default()
	cfg.Probe.Method = "dns"
	cfg.Engine.Timeout = 7 * time.Second
	require.NoError(t, applyScanOverrides(cmd, cfg))

	assert.Equal(t, "dns", cfg.Probe.Method, "flag defaults do not clobber the file")
	assert.Equal(t, 7*time.Second, cfg.Engine.Timeout)
}

func TestApplyScanOverrides_TimeoutEnv(t *testing.T) {
	initConfig()
	t.Setenv("RECON_TIMEOUT", "0.25")

	cfg := config.Default()
	require.NoError(t, applyScanOverrides(newFlagCommand(t), cfg))
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.Timeout)

	cfg = config.Default()
	require.NoError(t, applyScanOverrides(newFlagCommand(t, "--timeout", "3"), cfg))
	assert.Equal(t, 3*time.Second, cfg.Engine.Timeout, "flag beats environment")
}

func TestApplyScanOverrides_InvalidTimeout(t *testing.T) {
	for _, v := range []string{"0", "-1"} {
		err := applyScanOverrides(newFlagCommand(t, "--timeout", v), config.Default())
		require.Error(t, err, v)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
	}
}

func TestScanCommand(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()
	openPort := l.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	out := filepath.Join(t.TempDir(), "results.txt")
	rootCmd.SetArgs([]string{
		"scan",
		"--log-level", "error",
		"--targets", "127.0.0.1",
		"--ports", strconv.Itoa(openPort) + "," + strconv.Itoa(closedPort),
		"--timeout", "2",
		"--output", out,
		"--no-summary",
	})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "127.0.0.1\t"+strconv.Itoa(openPort)+"\topen\n")
	assert.Contains(t, string(data), "127.0.0.1\t"+strconv.Itoa(closedPort)+"\tclosed\n")
}

func TestLimitsCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"limits", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "boundary")
	assert.Contains(t, buf.String(), "stash delay")
}

func TestConfigCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	t.Run("print", func(t *testing.T) {
		rootCmd.SetArgs([]string{"config", "--log-level", "error"})
		require.NoError(t, rootCmd.Execute())

		assert.Contains(t, buf.String(), "engine:")
		assert.Contains(t, buf.String(), "fd_margin: 100")
	})

	t.Run("write", func(t *testing.T) {
		defer func() { configWrite = "" }()
		buf.Reset()

		path := filepath.Join(t.TempDir(), "recon.yaml")
		rootCmd.SetArgs([]string{"config", "--log-level", "error", "--write", path})
		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, buf.String(), path)

		saved, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, config.Default().Engine, saved.Engine)
		assert.Equal(t, config.Default().Probe, saved.Probe)
	})
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2024-01-01")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2024-01-01)", rootCmd.Version)
}
