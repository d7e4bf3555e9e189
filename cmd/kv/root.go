package kv

import (
	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	kvClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setExCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(expireCmd)
	KeyValueCommands.AddCommand(ttlCmd)
	KeyValueCommands.AddCommand(saddCmd)
	KeyValueCommands.AddCommand(smembersCmd)
	KeyValueCommands.AddCommand(txCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects the client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// the perf command opens its own connections
	if cmd == perfTestCmd {
		return nil
	}

	var err error
	kvClient, err = util.NewClient()
	return err
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if kvClient == nil {
		return nil
	}
	return kvClient.Close()
}
