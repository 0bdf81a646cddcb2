package etcd

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/spf13/viper"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/imtaco/meeting-coordinator/internal/errors"
)

const ErrConfig errors.Code = "etcd config error"

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type Config struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeepAlive   time.Duration `mapstructure:"keepalive"`
	TLS         TLSConfig     `mapstructure:"tls"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("endpoints"), []string{"etcd:2379"})
	v.SetDefault(p("dial_timeout"), "5s")
	v.SetDefault(p("keepalive"), "30s")
	v.SetDefault(p("tls.enabled"), false)
}

// NewClient dials etcd. Dialing is lazy, so a reachable cluster is only
// proven by the first request.
func NewClient(c *Config) (*clientv3.Client, error) {
	cfg := clientv3.Config{
		Endpoints:         c.Endpoints,
		Username:          c.Username,
		Password:          c.Password,
		DialTimeout:       c.DialTimeout,
		DialKeepAliveTime: c.KeepAlive,
	}
	if c.TLS.Enabled {
		tc, err := c.TLS.build()
		if err != nil {
			return nil, err
		}
		cfg.TLS = tc
	}
	return clientv3.New(cfg)
}

func (t TLSConfig) build() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, errors.Wrap(ErrConfig, err, "fail to read ca_file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New(ErrConfig, "no certificates in ca_file")
		}
		tc.RootCAs = pool
	}

	if (t.CertFile == "") != (t.KeyFile == "") {
		return nil, errors.New(ErrConfig, "cert_file and key_file must be set together")
	}
	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, errors.Wrap(ErrConfig, err, "fail to load client certificate")
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}
