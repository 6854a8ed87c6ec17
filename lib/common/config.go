package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/engines/lsm"
	"github.com/ValentinKolb/zKV/lib/db/engines/maple"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/ValentinKolb/zKV/lib/store/zstore"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// Config holds all parameters needed to open a sorted-set store
type Config struct {
	// Storage
	DataDir     string            // directory of the lsm database
	Engine      db.Implementation // lsm or maple
	SyncWrites  bool              // sync the write-ahead log on every commit
	CacheSizeMB int

	// Store
	Namespace     string
	GCInterval    time.Duration // 0 disables the background collector
	SweepInterval time.Duration

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a configuration for a durable store in dataDir
func DefaultConfig(dataDir string) *Config {
	opts := zstore.DefaultOptions("default")
	return &Config{
		DataDir:       dataDir,
		Engine:        db.ImplLSM,
		SyncWrites:    true,
		CacheSizeMB:   64,
		Namespace:     opts.Namespace,
		GCInterval:    opts.GCInterval,
		SweepInterval: opts.SweepInterval,
		LogLevel:      "info",
	}
}

// Validate checks the configuration for values no store can be opened with
func (c *Config) Validate() error {
	switch c.Engine {
	case db.ImplLSM:
		if c.DataDir == "" {
			return fmt.Errorf("the %s engine needs a data directory", c.Engine)
		}
	case db.ImplMaple:
	default:
		return fmt.Errorf("unknown engine %q. must be one of %s, %s", c.Engine, db.ImplLSM, db.ImplMaple)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.CacheSizeMB < 0 || c.GCInterval < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("cache size and intervals must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DBFactory returns a factory for the configured engine
func (c *Config) DBFactory() store.DBFactory {
	return func() (db.KVDB, error) {
		switch c.Engine {
		case db.ImplMaple:
			return maple.NewMapleDB(nil), nil
		case db.ImplLSM:
			opts := lsm.DefaultOptions(filepath.Clean(c.DataDir))
			opts.Sync = c.SyncWrites
			opts.CacheSizeMB = c.CacheSizeMB
			return lsm.NewLSMDB(opts)
		default:
			return nil, fmt.Errorf("unknown engine %q", c.Engine)
		}
	}
}

// StoreOptions returns the options of the sorted-set store
func (c *Config) StoreOptions() *zstore.Options {
	opts := zstore.DefaultOptions(c.Namespace)
	opts.GCInterval = c.GCInterval
	opts.SweepInterval = c.SweepInterval
	return opts
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Engine", string(c.Engine))
	if c.Engine == db.ImplLSM {
		addField("Data Directory", c.DataDir)
		addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))
		addField("Cache Size", fmt.Sprintf("%d MB", c.CacheSizeMB))
	}

	addSection("Store")
	addField("Namespace", c.Namespace)
	if c.GCInterval > 0 {
		addField("GC Interval", c.GCInterval.String())
		addField("Sweep Interval", c.SweepInterval.String())
	} else {
		addField("GC Interval", "disabled")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
