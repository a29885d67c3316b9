package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/shardgraph/shardgraph/cmd/util"
	"github.com/shardgraph/shardgraph/lib/shardmap"
	"github.com/shardgraph/shardgraph/lib/shardmgr"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/node"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a shardgraph storage node",
		Long:    `Start a shardgraph storage node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SHARDGRAPH_<flag> (e.g. SHARDGRAPH_TIMEOUT=15).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	key := "node-ip"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0", cmdUtil.WrapString("The IP address this node advertises to the coordinator"))

	key = "node-port"
	ServeCmd.PersistentFlags().Uint16(key, 9000, cmdUtil.WrapString("The port this node advertises to the coordinator"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address the transport listens on"))

	key = "num-workers"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Number of worker goroutines the shard manager runs, each owning a disjoint subset of shards"))

	key = "cron-interval-millisecond"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Heartbeat/cron tick interval in milliseconds. 0 picks a random value in [100, 200]ms"))

	key = "coordinator-endpoints"
	ServeCmd.PersistentFlags().String(key, "localhost:9100", cmdUtil.WrapString("Comma-separated list of coordinator endpoints this node sends heartbeats to"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Coordinator round-trip timeout in seconds"))

	key = "serializer"
	ServeCmd.PersistentFlags().String(key, "json", cmdUtil.WrapString("serializer to use (json)"))

	key = "transport"
	ServeCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("transport to use (tcp)"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Uint64(key, 100, cmdUtil.WrapString("(raft-backed shards) Round Trip Time in milliseconds between two NodeHost instances; election/heartbeat RTT are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Uint64(key, 10, cmdUtil.WrapString("(raft-backed shards) how often to automatically snapshot, in applied log entries"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Uint64(key, 5, cmdUtil.WrapString("(raft-backed shards) number of snapshots retained beyond the newest one"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(raft-backed shards) directory used for WAL and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("(raft-backed shards) this NodeHost's replica id within its raft groups"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(raft-backed shards) comma-separated 'replicaID=host:port' list of NodeHost addresses"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("log level (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.NodeIP = viper.GetString("node-ip")
	serveCmdConfig.NodePort = uint16(viper.GetUint("node-port"))
	serveCmdConfig.NumWorkers = viper.GetInt("num-workers")
	serveCmdConfig.CronIntervalMillisecond = viper.GetUint64("cron-interval-millisecond")
	serveCmdConfig.CoordinatorEndpoints = strings.Split(viper.GetString("coordinator-endpoints"), ",")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.ReplicaID = viper.GetUint64("replica-id")

	if members := viper.GetString("cluster-members"); members != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(members, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected replicaID=address)", member)
			}
			id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid replica id %s: %v", parts[0], err)
			}
			serveCmdConfig.ClusterMembers[id] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}

// run starts a storage node: it builds a shard manager wired to the
// coordinator over the configured transport, registers an rpc/node.Server
// to answer inbound routed and split-forward requests, and blocks until
// the process is signalled to stop.
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(*serveCmdConfig)
	log := common.CreateLogger("cmd/serve")
	log.SetLevel(parseLogLevel(serveCmdConfig.LogLevel))
	log.Infof("starting shardgraph node%s", serveCmdConfig.String())

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serverTransport, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	clientTransport, err := cmdUtil.GetClientTransport()
	if err != nil {
		return err
	}
	coordCfg := common.ClientConfig{
		TimeoutSecond: int(serveCmdConfig.TimeoutSecond),
		Transport: common.ClientTransportConfig{
			Endpoints:              serveCmdConfig.CoordinatorEndpoints,
			ConnectionsPerEndpoint: 1,
			RetryCount:             3,
		},
	}
	coordinator, err := node.NewCoordinatorClient(clientTransport, s, coordCfg)
	if err != nil {
		return fmt.Errorf("connect to coordinator: %w", err)
	}
	defer func() { _ = coordinator.Close() }()

	self := shardmap.Address{IP: serveCmdConfig.NodeIP, Port: serveCmdConfig.NodePort}
	manager := shardmgr.New(shardmgr.Options{
		Self:         self,
		Coordinator:  coordinator,
		Handler:      node.AdminHandler,
		NumWorkers:   serveCmdConfig.NumWorkers,
		CronInterval: cronInterval(serveCmdConfig.CronIntervalMillisecond),
	})
	manager.Start()
	defer manager.Stop()

	server := node.NewServer(manager, s)
	serverTransport.RegisterHandler(server.Handle)

	listenErr := make(chan error, 1)
	go func() { listenErr <- serverTransport.Listen(*serveCmdConfig) }()
	log.Infof("listening on %s", serveCmdConfig.Transport.Endpoint)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		return fmt.Errorf("listen on %s: %w", serveCmdConfig.Transport.Endpoint, err)
	case <-sig:
		log.Infof("shutting down")
		return nil
	}
}

func cronInterval(ms uint64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// parseLogLevel maps the log-level flag onto dragonboat's logger.LogLevel,
// mirroring rpc/common.parseLogLevel (unexported there).
func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("shardgraph")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
