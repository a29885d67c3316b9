package cmd

import (
	"fmt"
	"os"

	"github.com/shardgraph/shardgraph/cmd/admin"
	"github.com/shardgraph/shardgraph/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "shardgraph",
		Short: "sharded, multi-version graph storage engine",
		Long: fmt.Sprintf(`shardgraph (v%s)

A sharded, multi-version graph storage engine: each shard runs
snapshot-isolated MVCC transactions over an in-memory graph, replicated
through a pluggable write-ahead log and split by a coordinator-driven
protocol as shards grow.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of shardgraph",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shardgraph v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(admin.AdminCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
