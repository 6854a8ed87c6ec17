package util

import (
	"strings"

	"github.com/ValentinKolb/zKV/lib/common"
	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/ValentinKolb/zKV/lib/store/zstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags needed to open a store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := common.DefaultConfig("./zkv-data")

	key := "data-dir"
	cmd.PersistentFlags().String(key, defaults.DataDir, WrapString("Directory of the database files (lsm engine only)"))

	key = "engine"
	cmd.PersistentFlags().String(key, string(defaults.Engine), WrapString("The storage engine to use (lsm, maple). maple keeps all data in memory and loses it on exit"))

	key = "sync"
	cmd.PersistentFlags().Bool(key, defaults.SyncWrites, WrapString("Whether to sync the write-ahead log on every commit"))

	key = "cache-size"
	cmd.PersistentFlags().Int(key, defaults.CacheSizeMB, WrapString("Size of the block cache in MB"))

	key = "namespace"
	cmd.PersistentFlags().String(key, defaults.Namespace, WrapString("Namespace of the sorted sets, different namespaces never see each others keys"))

	key = "gc-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Interval of the background garbage collector (0 = disabled, run 'gc' manually)"))

	key = "sweep-interval"
	cmd.PersistentFlags().Duration(key, defaults.SweepInterval, WrapString("Interval of full sweeps of the namespace by the background garbage collector"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("zkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the store configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		DataDir:       viper.GetString("data-dir"),
		Engine:        db.Implementation(viper.GetString("engine")),
		SyncWrites:    viper.GetBool("sync"),
		CacheSizeMB:   viper.GetInt("cache-size"),
		Namespace:     viper.GetString("namespace"),
		GCInterval:    viper.GetDuration("gc-interval"),
		SweepInterval: viper.GetDuration("sweep-interval"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// OpenStore validates the configuration, initializes the loggers and opens the database
// and the sorted-set store on top of it.
// The returned close function closes both.
func OpenStore(config *common.Config) (store.IStore, db.KVDB, func() error, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, nil, nil, err
	}

	database, err := config.DBFactory()()
	if err != nil {
		return nil, nil, nil, err
	}

	s, err := zstore.NewStore(database, config.StoreOptions())
	if err != nil {
		_ = database.Close()
		return nil, nil, nil, err
	}

	closeFn := func() error {
		if err := s.Close(); err != nil {
			_ = database.Close()
			return err
		}
		return database.Close()
	}
	return s, database, closeFn, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
