package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/common"
)

// Config holds runtime settings for the habitsync CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - OnlineCheckInterval: how often the client checks server reachability.
//   - DataDir: directory holding the database, audio files and logs.
//   - LogLevel: zap level name (debug, info, warn, error).
//   - Zone: name of the remote record zone.
//   - PageSize: maximum number of changes fetched per request.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DataDir             string
	LogLevel            string
	Zone                string
	PageSize            int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = defaultDataDir()
	c.LogLevel = "info"
	c.Zone = common.DefaultZoneName
	c.PageSize = 200
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".habitsync"
	}
	return filepath.Join(home, ".habitsync")
}

// DatabasePath is the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "habitsync.db")
}

// LogPath is the log file inside DataDir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "habitsync.log")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
