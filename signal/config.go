package signal

import (
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

type Config struct {
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	FanoutChannel string        `mapstructure:"fanout_channel"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	HostCacheSize int           `mapstructure:"host_cache_size"`
	EndedTTL      time.Duration `mapstructure:"ended_ttl"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("redis_prefix"), "mtgsig")
	v.SetDefault(p("fanout_channel"), "mtgsig:fanout")
	v.SetDefault(p("rate_limit"), 10)
	v.SetDefault(p("rate_burst"), 20)
	v.SetDefault(p("host_cache_size"), 2000)
	v.SetDefault(p("ended_ttl"), "24h")
}

// Limit converts the configured rate; zero or less disables throttling.
func (c Config) Limit() rate.Limit {
	if c.RateLimit <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RateLimit)
}
