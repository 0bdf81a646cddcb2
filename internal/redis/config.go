package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	TLS          bool          `mapstructure:"tls"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("addr"), "redis:6379")
	v.SetDefault(p("db"), 0)
	v.SetDefault(p("tls"), false)
	v.SetDefault(p("dial_timeout"), "5s")
	v.SetDefault(p("read_timeout"), "3s")
	v.SetDefault(p("write_timeout"), "3s")
	// 0 keeps the go-redis default of 10 per CPU
	v.SetDefault(p("pool_size"), 0)
}

func (c *Config) options() *redis.Options {
	opt := &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	}
	if c.TLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt
}

func NewClient(cfg *Config) *redis.Client {
	return redis.NewClient(cfg.options())
}

// Connect builds a client and checks the server answers within timeout.
func Connect(cfg *Config, timeout time.Duration) (*redis.Client, error) {
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
