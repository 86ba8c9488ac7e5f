package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dRec/cmd/util"
	"github.com/ValentinKolb/dRec/lib/logstore"
	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/lib/record/memstore"
	"github.com/ValentinKolb/dRec/lib/record/pgstore"
	"github.com/ValentinKolb/dRec/lib/record/sqlstore"
	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dRec server",
		Long:    `Start the dRec server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DREC_<flag> (e.g. DREC_LOG_FILE=/var/log/drec.txt)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultEndpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 127.0.0.1:3202, /tmp/drec.sock, ...)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 50, cmdUtil.WrapString("The number of connections handled concurrently. Further connections wait in the queue"))

	key = "accept-timeout-millisecond"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("The accept poll interval in milliseconds. A stop request is observed after at most this interval"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("The maximum size of a single command in bytes"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("The read/write deadline of a connection in seconds (0 disables it)"))

	key = "log-file"
	ServeCmd.PersistentFlags().String(key, logstore.DefaultPath, cmdUtil.WrapString("The file the command log is persisted to"))

	key = "store"
	ServeCmd.PersistentFlags().String(key, string(common.StoreTypeMemory), cmdUtil.WrapString("The record store backend (memory, sqlite, postgres)"))

	key = "store-dsn"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The database file (sqlite) or connection string (postgres)"))

	key = "store-seed"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("A YAML file of records the memory store is filled with on start"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the prometheus metrics endpoint (e.g. 127.0.0.1:9202), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keep-alive period in seconds, 0 disables it (only for tcp)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("SO_LINGER in seconds, a negative value keeps the os default (only for tcp)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:                 viper.GetString("endpoint"),
		Workers:                  viper.GetInt("workers"),
		AcceptTimeoutMillisecond: viper.GetInt("accept-timeout-millisecond"),
		ReadBufferSize:           viper.GetInt("read-buffer"),
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogFile = viper.GetString("log-file")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Store = common.StoreConfig{
		Type:     common.StoreType(viper.GetString("store")),
		DSN:      viper.GetString("store-dsn"),
		SeedFile: viper.GetString("store-seed"),
	}

	if serveCmdConfig.Transport.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", serveCmdConfig.Transport.Workers)
	}
	if serveCmdConfig.Transport.ReadBufferSize < 1 {
		return fmt.Errorf("read-buffer must be at least 1, got %d", serveCmdConfig.Transport.ReadBufferSize)
	}
	if serveCmdConfig.Transport.AcceptTimeoutMillisecond < 1 {
		return fmt.Errorf("accept-timeout-millisecond must be at least 1, got %d", serveCmdConfig.Transport.AcceptTimeoutMillisecond)
	}

	switch serveCmdConfig.Store.Type {
	case common.StoreTypeMemory:
	case common.StoreTypeSQLite, common.StoreTypePostgres:
		if serveCmdConfig.Store.DSN == "" {
			return fmt.Errorf("store %s requires --store-dsn", serveCmdConfig.Store.Type)
		}
	default:
		return fmt.Errorf("invalid store %s (expected one of: memory, sqlite, postgres)", serveCmdConfig.Store.Type)
	}

	return nil
}

// newStore creates the record store selected by the configuration
func newStore(ctx context.Context, conf common.StoreConfig) (record.IRecordStore, error) {
	switch conf.Type {
	case common.StoreTypeMemory:
		if conf.SeedFile != "" {
			return memstore.NewSeededMemStore(conf.SeedFile)
		}
		return memstore.NewMemStore(), nil
	case common.StoreTypeSQLite:
		return sqlstore.NewSQLiteStore(conf.DSN)
	case common.StoreTypePostgres:
		return pgstore.NewPostgresStore(ctx, conf.DSN)
	default:
		return nil, fmt.Errorf("invalid store %s", conf.Type)
	}
}

// run starts the dRec server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	fmt.Print(serveCmdConfig.String())

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, serveCmdConfig.Store)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			server.Logger.Errorf("failed to close record store: %v", err)
		}
	}()

	logs := logstore.Open(serveCmdConfig.LogFile)
	defer func() {
		if err := logs.Close(); err != nil {
			server.Logger.Errorf("failed to flush command log: %v", err)
		}
	}()

	serv := server.NewRPCServer(*serveCmdConfig, t, store, logs)
	serv.OnLogAppended(func(line string) {
		server.Logger.Infof("%s", line)
	})

	if err := serv.Bind(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		server.Logger.Infof("Shutting down")
		serv.Stop()
	}()

	return serv.Serve()
}
