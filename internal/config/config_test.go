package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	App  App    `mapstructure:"app"`
	Addr string `mapstructure:"addr"`
	Name string `mapstructure:"name"`
}

func load(t *testing.T) *testConfig {
	t.Helper()
	c, err := Load(&testConfig{}, func(v *viper.Viper) {
		Setup(v, "app")
		v.SetDefault("addr", ":8080")
		v.SetDefault("name", "default")
	})
	require.NoError(t, err)
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := load(t)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 10*time.Second, c.App.ShutdownTimeout)
	assert.Empty(t, c.App.LogConfigFile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("addr: \":9000\"\nname: from-file\napp:\n  shutdown_timeout: 3s\n"), 0o600))

	t.Setenv(FileEnv, file)
	t.Setenv("NAME", "from-env")

	c := load(t)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, "from-env", c.Name)
	assert.Equal(t, 3*time.Second, c.App.ShutdownTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(&testConfig{}, func(*viper.Viper) {})
	assert.Error(t, err)
}
