package logs

import (
	"fmt"

	"github.com/ValentinKolb/dRec/cmd/util"
	"github.com/ValentinKolb/dRec/lib/logstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LogsCmd prints the persisted command log
var LogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the command log of a dRec server",
	Long:  `Print the command log file written by 'drec serve', one line per processed command in the format "<YYYY-MM-DD HH:MM:SS> - command: <text>".`,
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "log-file"
	LogsCmd.Flags().String(key, logstore.DefaultPath, util.WrapString("The command log file to read"))

	key = "tail"
	LogsCmd.Flags().Int(key, 0, util.WrapString("Only print the last n entries (0 prints all)"))

	key = "raw"
	LogsCmd.Flags().Bool(key, false, util.WrapString("Print the entries as stored in the file (timestamp#text)"))
}

func run(cmd *cobra.Command, _ []string) error {
	entries, err := logstore.Load(viper.GetString("log-file"))
	if err != nil {
		return err
	}

	if n := viper.GetInt("tail"); n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}

	raw := viper.GetBool("raw")
	out := cmd.OutOrStdout()
	for _, e := range entries {
		if raw {
			fmt.Fprintln(out, e.Line())
		} else {
			fmt.Fprintln(out, e.Format())
		}
	}
	return nil
}
