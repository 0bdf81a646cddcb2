package httputil

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	CertFile          string        `mapstructure:"cert_file"`
	KeyFile           string        `mapstructure:"key_file"`
}

func Setup(v *viper.Viper, prefix, addr string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("addr"), addr)
	v.SetDefault(p("read_header_timeout"), "10s")
	v.SetDefault(p("cert_file"), "")
	v.SetDefault(p("key_file"), "")
}

// Server serves TLS when both cert_file and key_file are set.
type Server struct {
	*http.Server
	certFile string
	keyFile  string
}

func NewServer(cfg *Config, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}
}

// Listen blocks until the server fails or is shut down; shutdown is not an
// error.
func (s *Server) Listen() error {
	var err error
	switch {
	case s.certFile != "" && s.keyFile != "":
		err = s.ListenAndServeTLS(s.certFile, s.keyFile)
	case s.certFile != "" || s.keyFile != "":
		return errors.New("cert_file and key_file must be set together")
	default:
		err = s.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
