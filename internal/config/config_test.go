package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_WritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sandfs.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.Image.BlockSize)
	require.Equal(t, 256, cfg.Image.BlockCount)
	require.Equal(t, filepath.Join("run", "sandfs", "image.sfs"), cfg.Image.Path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides keep defaults",
			yaml: "node:\n  data_dir: /tmp/x\nimage:\n  block_count: 64\n",
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, 4096, cfg.Image.BlockSize)
				require.Equal(t, 64, cfg.Image.BlockCount)
				require.Equal(t, "/tmp/x/image.sfs", cfg.Image.Path)
				require.Equal(t, "/tmp/x/logs", cfg.Log.Dir)
			},
		},
		{
			name: "case folded backend",
			yaml: "log:\n  backend: ZAP\nserver:\n  transport: HTTP\n",
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, LogBackendZap, cfg.Log.Backend)
				require.Equal(t, TransportHTTP, cfg.Server.Transport)
			},
		},
		{
			name: "client servers",
			yaml: "client:\n  servers:\n    - id: a\n      address: host:1\n  default_server: a\n",
			check: func(t *testing.T, cfg *Config) {
				addr, ok := cfg.ServerAddress("")
				require.True(t, ok)
				require.Equal(t, "host:1", addr)
				_, ok = cfg.ServerAddress("server1")
				require.False(t, ok)
			},
		},
		{name: "bad block size", yaml: "image:\n  block_size: 10\n", wantErr: true},
		{name: "zero blocks", yaml: "image:\n  block_count: 0\n", wantErr: true},
		{name: "bad backend", yaml: "log:\n  backend: syslog\n", wantErr: true},
		{name: "bad transport", yaml: "server:\n  transport: udp\n", wantErr: true},
		{name: "unknown default server", yaml: "client:\n  default_server: nope\n", wantErr: true},
		{name: "bad yaml", yaml: "image: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
