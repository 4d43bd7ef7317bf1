package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-i int      online check interval in seconds
//	-d string   data directory
//	-l string   log level
//	-z string   record zone name
//	-p int      fetch page size
//
// Flags owned by other components are skipped, see flagx.ParseFiltered.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.Zone, "z", cfg.Zone, "record zone name")
	fs.IntVar(&cfg.PageSize, "p", cfg.PageSize, "fetch page size")

	if err := flagx.ParseFiltered(fs, args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if *onlineCheckInterval <= 0 {
		return fmt.Errorf("parse flags: online check interval must be positive, got %d", *onlineCheckInterval)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
