package etcd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSBuild(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(bogus, []byte("not a cert"), 0o600))

	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing ca file", TLSConfig{CAFile: filepath.Join(dir, "none.pem")}},
		{"ca without certs", TLSConfig{CAFile: bogus}},
		{"cert without key", TLSConfig{CertFile: bogus}},
		{"key without cert", TLSConfig{KeyFile: bogus}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.build()
			assert.ErrorIs(t, err, ErrConfig)
		})
	}

	tc, err := TLSConfig{}.build()
	require.NoError(t, err)
	assert.Nil(t, tc.RootCAs)
	assert.Empty(t, tc.Certificates)
}
