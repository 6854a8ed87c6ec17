package zset

import (
	"github.com/ValentinKolb/zKV/cmd/util"
	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	log = logger.GetLogger("cli")

	zStore    store.IStore
	database  db.KVDB
	closeZSet func() error

	// ZSetCommands represents the sorted-set command group
	ZSetCommands = &cobra.Command{
		Use:                "zset",
		Short:              "Perform sorted-set operations",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the flags needed to open the store
	util.SetupStoreFlags(ZSetCommands)

	// Mutations
	ZSetCommands.AddCommand(addCmd)
	ZSetCommands.AddCommand(incrByCmd)
	ZSetCommands.AddCommand(remCmd)
	ZSetCommands.AddCommand(popCmd)
	ZSetCommands.AddCommand(remRangeByScoreCmd)
	ZSetCommands.AddCommand(remRangeByRankCmd)
	ZSetCommands.AddCommand(remRangeByLexCmd)
	ZSetCommands.AddCommand(delCmd)
	ZSetCommands.AddCommand(expireCmd)
	ZSetCommands.AddCommand(persistCmd)

	// Reads
	ZSetCommands.AddCommand(scoreCmd)
	ZSetCommands.AddCommand(mScoreCmd)
	ZSetCommands.AddCommand(rankCmd)
	ZSetCommands.AddCommand(rangeCmd)
	ZSetCommands.AddCommand(rangeByScoreCmd)
	ZSetCommands.AddCommand(rangeByLexCmd)
	ZSetCommands.AddCommand(cardCmd)
	ZSetCommands.AddCommand(countCmd)
	ZSetCommands.AddCommand(lexCountCmd)
	ZSetCommands.AddCommand(ttlCmd)

	// Maintenance
	ZSetCommands.AddCommand(gcCmd)
	ZSetCommands.AddCommand(statsCmd)
	ZSetCommands.AddCommand(dumpCmd)
	ZSetCommands.AddCommand(restoreCmd)
	ZSetCommands.AddCommand(perfTestCmd)
}

// setupStore opens the configured database and the sorted-set store on top of it
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetConfig()

	var err error
	zStore, database, closeZSet, err = util.OpenStore(config)
	if err != nil {
		return err
	}
	log.Debugf("opened store:%s", config)
	return nil
}

// closeStore stops the store and closes the database
func closeStore(_ *cobra.Command, _ []string) error {
	if closeZSet == nil {
		return nil
	}
	err := closeZSet()
	closeZSet = nil
	return err
}
