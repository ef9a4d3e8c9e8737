package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:   "bullshark",
		Short: "DAG consensus commit engine",
	}
)

func Execute() error {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	regCommands()

	return rootCmd.Execute()
}

func regCommands() {
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(replayCmd)
}
