package rec

import (
	"github.com/ValentinKolb/dRec/cmd/util"
	"github.com/ValentinKolb/dRec/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:               "record",
		Aliases:           []string{"rec"},
		Short:             "Send record commands to a dRec server",
		PersistentPreRunE: setupRecordClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the record command
	util.SetupRPCClientFlags(RecordCommands)

	// Add subcommands
	RecordCommands.AddCommand(selectCmd)
	RecordCommands.AddCommand(updateCmd)
	RecordCommands.AddCommand(insertCmd)
	RecordCommands.AddCommand(deleteCmd)
	RecordCommands.AddCommand(sendCmd)
	RecordCommands.AddCommand(perfTestCmd)
}

// setupRecordClient initializes the RPC client
func setupRecordClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcClient = client.NewRPCClient(*util.GetClientConfig(), t)
	return nil
}
