package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Engine.StashDelay)
	assert.Equal(t, 4000, cfg.Engine.ChunkSize)
	assert.Equal(t, 100, cfg.Engine.FDMargin)
	assert.Equal(t, "tcp", cfg.Probe.Method)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Output.Format)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "recon.yaml")
		content := `
engine:
  timeout: 1500ms
  max_jobs: 256
  stash_delay: 2s
probe:
  method: socks5
logging:
  level: debug
  format: json
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1500*time.Millisecond, cfg.Engine.Timeout)
		assert.Equal(t, 256, cfg.Engine.MaxJobs)
		assert.Equal(t, 2*time.Second, cfg.Engine.StashDelay)
		assert.Equal(t, "socks5", cfg.Probe.Method)
		assert.Equal(t, 4000, cfg.Engine.ChunkSize, "unset fields keep defaults")
	})

	t.Run("malformed yaml is a config error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("engine: [unterminated"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsFatal(err))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"zero chunk size", func(c *Config) { c.Engine.ChunkSize = 0 }, "engine.chunksize"},
		{"negative margin", func(c *Config) { c.Engine.FDMargin = -1 }, "engine.fdmargin"},
		{"unknown method", func(c *Config) { c.Probe.Method = "icmp" }, "probe.method"},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"database enabled without name", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Username = "recon"
		}, "database.database"},
		{"metrics enabled without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}, "metrics.listenaddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "recon.yaml")
	cfg := Default()
	cfg.Engine.MaxJobs = 64
	cfg.Probe.Method = "dns"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, loaded.Engine.MaxJobs)
	assert.Equal(t, "dns", loaded.Probe.Method)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Database: "recon", Username: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 dbname=recon user=u password=p sslmode=disable", d.DSN())
}
