package cmd

import (
	"fmt"
	"github.com/ValentinKolb/respkv/cmd/kv"
	"github.com/ValentinKolb/respkv/cmd/lock"
	"github.com/ValentinKolb/respkv/cmd/serve"
	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "respkv",
		Short: "RESP key-value client with transactions",
		Long: fmt.Sprintf(`respkv (v%s)

A RESP key-value client written in Go with pipelining and MULTI/EXEC
transactions, plus a single node development server.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of respkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("respkv v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
