package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dRec/cmd/logs"
	"github.com/ValentinKolb/dRec/cmd/rec"
	"github.com/ValentinKolb/dRec/cmd/serve"
	"github.com/ValentinKolb/dRec/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drec",
		Short: "record server and client",
		Long: fmt.Sprintf(`dRec (v%s)

A small record server written in Go. Clients send one text command per
connection (e.g. '#select|7'), the server executes it against a record
store and keeps a persistent log of every processed command.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRec",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRec v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(rec.RecordCommands)
	RootCmd.AddCommand(logs.LogsCmd)
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
