package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/zKV/cmd/zset"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "zkv",
		Short: "durable sorted-set store",
		Long: fmt.Sprintf(`zKV (v%s)

A durable sorted-set store library written in Go,
storing every set as rows of an ordered LSM key-value engine.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of zKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zKV v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(zset.ZSetCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
