package rspconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/coredump-labs/rspd/internal/rspconfig"
)

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := rspconfig.Load("", nil)
	require.NoError(t, err)

	require.Equal(t, 3333, cfg.Port)
	require.Equal(t, []string{"demo"}, cfg.Targets)
	require.Equal(t, "info", cfg.Logging.Level)
	require.False(t, cfg.Metrics.Enabled)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rspd.yaml")
	content := `
port: 4444
targets:
  - demo
  - demo2
logging:
  level: debug
metrics:
  enabled: true
  addr: ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := rspconfig.Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, 4444, cfg.Port)
	require.Equal(t, []string{"demo", "demo2"}, cfg.Targets)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rspd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4444\n"), 0644))

	bindFlags := func(v *viper.Viper) {
		v.Set("port", 5555)
	}

	cfg, err := rspconfig.Load(path, bindFlags)
	require.NoError(t, err)
	require.Equal(t, 5555, cfg.Port)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rspd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4444\n"), 0644))

	t.Setenv("RSPD_PORT", "6666")

	cfg, err := rspconfig.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 6666, cfg.Port)
}

func TestLoad_InvalidPortFailsValidation(t *testing.T) {
	bindFlags := func(v *viper.Viper) {
		v.Set("port", 0)
	}
	_, err := rspconfig.Load("", bindFlags)
	require.Error(t, err)
}

func TestLoad_MetricsEnabledRequiresAddr(t *testing.T) {
	bindFlags := func(v *viper.Viper) {
		v.Set("metrics.enabled", true)
		v.Set("metrics.addr", "")
	}
	_, err := rspconfig.Load("", bindFlags)
	require.Error(t, err)
}

func TestLoad_InvalidLogLevelFailsValidation(t *testing.T) {
	bindFlags := func(v *viper.Viper) {
		v.Set("logging.level", "screaming")
	}
	_, err := rspconfig.Load("", bindFlags)
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := rspconfig.Default()
	require.NoError(t, rspconfig.Validate(cfg))
}
