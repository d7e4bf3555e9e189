package serve

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the development server",
		Long:    `Start the single node RESP development server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RESPKV_<flag> (e.g. RESPKV_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Idle timeout of client connections in seconds (0 = no timeout)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:6380", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:6380, /tmp/respkv.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the http endpoint serving prometheus metrics on /metrics (e.g. localhost:9090, empty = disabled)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 = os default)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 = os default)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper and set the log level
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	if serveCmdConfig.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative: %d", serveCmdConfig.TimeoutSecond)
	}
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint: viper.GetString("endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay: viper.GetBool("transport-tcp-nodelay"),
		},
	}
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the development server and blocks until it is stopped
func run(_ *cobra.Command, _ []string) error {
	connector, err := cmdUtil.GetServerConnector()
	if err != nil {
		return err
	}

	serv := server.NewServer(*serveCmdConfig, connector)

	// Expose the prometheus metrics endpoint
	if endpoint := serveCmdConfig.MetricsEndpoint; endpoint != "" {
		go func() {
			if err := http.ListenAndServe(endpoint, server.NewMetricsHandler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Logger.Errorf("metrics endpoint failed: %v", err)
			}
		}()
	}

	// Close the server on SIGINT and SIGTERM, open connections are closed too
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		server.Logger.Infof("received %s, shutting down", s)
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("failed to close server: %v", err)
		}
	}()

	return serv.Serve()
}
