package zset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/zKV/cmd/util"
	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store/zstore"
	"github.com/spf13/cobra"
)

var (
	gcCmd = &cobra.Command{
		Use:   "gc",
		Short: "Removes the rows of deleted, recreated and expired sorted sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reclaimed, err := zStore.GarbageCollect()
			if err != nil {
				return err
			}
			fmt.Printf("reclaimed %d sorted sets\n", reclaimed)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints information about the database and the metrics of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := zStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if withMetrics, _ := cmd.Flags().GetBool("metrics"); withMetrics {
				if mw, ok := zStore.(zstore.MetricsWriter); ok {
					fmt.Println()
					mw.WritePrometheus(os.Stdout)
				}
			}
			return nil
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump [file]",
		Short: "Writes a consistent snapshot of the whole database to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !database.SupportsFeature(db.FeatureSave) {
				return fmt.Errorf("the %s engine does not support dumps", database.GetInfo().DbType)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create dump file: %w", err)
			}
			if err := database.Save(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("dumped database to %s\n", args[0])
			return nil
		},
	}
	restoreCmd = &cobra.Command{
		Use:   "restore [file]",
		Short: "Loads a dump into an empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !database.SupportsFeature(db.FeatureLoad) {
				return fmt.Errorf("the %s engine does not support restoring dumps", database.GetInfo().DbType)
			}
			force, _ := cmd.Flags().GetBool("force")
			if !force && !isEmpty(database) {
				return fmt.Errorf("the database is not empty, use --force to overwrite existing keys")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open dump file: %w", err)
			}
			defer f.Close()

			if err := database.Load(f); err != nil {
				return err
			}

			// dumps may contain garbage rows of the source database
			reclaimed, err := zStore.GarbageCollect()
			if err != nil {
				return err
			}
			fmt.Printf("restored database from %s (reclaimed %d sorted sets)\n", args[0], reclaimed)
			return nil
		},
	}
)

func init() {
	statsCmd.Flags().Bool("metrics", true, util.WrapString("Print the metrics of the store in the Prometheus text format"))
	restoreCmd.Flags().Bool("force", false, util.WrapString("Load the dump even if the database is not empty"))
}

func isEmpty(r db.Reader) bool {
	iter := r.NewIter(db.IterOptions{})
	defer iter.Close()
	return !iter.First()
}
