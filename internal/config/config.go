package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnishMulay/sandfs/internal/block_service"
	"gopkg.in/yaml.v3"
)

const (
	LogBackendLocalDisc = "localdisc"
	LogBackendZap       = "zap"

	TransportGRPC = "grpc"
	TransportHTTP = "http"
)

var ErrInvalidConfig = errors.New("invalid config")

type NodeConfig struct {
	ID      string `yaml:"id"`
	DataDir string `yaml:"data_dir"`
}

type ImageConfig struct {
	Path       string `yaml:"path"`
	BlockSize  int    `yaml:"block_size"`
	BlockCount int    `yaml:"block_count"`
}

type LogConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
}

type ServerConfig struct {
	Listen    string `yaml:"listen"`
	Transport string `yaml:"transport"`
}

type MountConfig struct {
	Mountpoint string `yaml:"mountpoint"`
}

type ServerEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

type ClientConfig struct {
	Servers       []ServerEntry `yaml:"servers"`
	DefaultServer string        `yaml:"default_server"`
}

type Config struct {
	Node   NodeConfig   `yaml:"node"`
	Image  ImageConfig  `yaml:"image"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Mount  MountConfig  `yaml:"mount"`
	Client ClientConfig `yaml:"client"`
}

func Default() *Config {
	return &Config{
		Node: NodeConfig{ID: "sandfs", DataDir: "./run/sandfs"},
		Image: ImageConfig{
			BlockSize:  block_service.DefaultBlockSize,
			BlockCount: block_service.DefaultBlockCount,
		},
		Log:    LogConfig{Backend: LogBackendLocalDisc, Level: "INFO"},
		Server: ServerConfig{Listen: "localhost:8080", Transport: TransportGRPC},
		Client: ClientConfig{
			Servers:       []ServerEntry{{ID: "server1", Address: "localhost:8080"}},
			DefaultServer: "server1",
		},
	}
}

// Load reads the YAML file at path. A missing file is created with the
// default config, which is then returned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyDefaults()

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, so omitted keys keep their default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills paths derived from the data dir.
func (c *Config) applyDefaults() {
	if c.Node.ID == "" {
		c.Node.ID = "sandfs"
	}
	if c.Image.Path == "" {
		c.Image.Path = filepath.Join(c.Node.DataDir, "image.sfs")
	}
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.Node.DataDir, "logs")
	}
	c.Log.Backend = strings.ToLower(c.Log.Backend)
	c.Server.Transport = strings.ToLower(c.Server.Transport)
}

func (c *Config) Validate() error {
	if _, err := block_service.NewLayout(c.Image.BlockSize, c.Image.BlockCount); err != nil {
		return fmt.Errorf("%w: image: %w", ErrInvalidConfig, err)
	}

	switch c.Log.Backend {
	case LogBackendLocalDisc, LogBackendZap:
	default:
		return fmt.Errorf("%w: unknown log backend %q", ErrInvalidConfig, c.Log.Backend)
	}

	switch c.Server.Transport {
	case TransportGRPC, TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Server.Transport)
	}

	if len(c.Client.Servers) > 0 {
		if _, ok := c.ServerAddress(c.Client.DefaultServer); !ok {
			return fmt.Errorf("%w: default server %q is not listed", ErrInvalidConfig, c.Client.DefaultServer)
		}
	}
	return nil
}

// ServerAddress looks up a client server entry by id. An empty id selects
// the default server.
func (c *Config) ServerAddress(id string) (string, bool) {
	if id == "" {
		id = c.Client.DefaultServer
	}
	for _, s := range c.Client.Servers {
		if s.ID == id {
			return s.Address, true
		}
	}
	return "", false
}
