package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileEnv names an optional YAML/JSON/TOML file read before env overrides.
const FileEnv = "CONFIG_FILE"

// App holds settings every binary shares.
type App struct {
	LogConfigFile   string        `mapstructure:"log_config_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	// empty logs to the console
	v.SetDefault(p("log_config_file"), "")
	v.SetDefault(p("shutdown_timeout"), "10s")
}

// Load fills c from defaults registered by configure, then the file named
// by CONFIG_FILE, then env vars: key "redis.addr" is read from REDIS_ADDR.
func Load[T any](c *T, configure func(v *viper.Viper)) (*T, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configure(v)

	if file := os.Getenv(FileEnv); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return c, v.Unmarshal(c)
}
