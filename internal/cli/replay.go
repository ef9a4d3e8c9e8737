package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/bullshark/internal/config"
	"github.com/tcfw/bullshark/pkg/consensus"
	"github.com/tcfw/bullshark/pkg/store"
)

var (
	replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "print committed sub-DAGs from the consensus store",
		RunE:  runReplay,
	}
)

func init() {
	replayCmd.Flags().Uint64P("from", "f", 1, "first sub-DAG index to replay")
	viper.BindPFlag("replay.from", replayCmd.Flags().Lookup("from"))
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	st, err := store.Open(cfg.Consensus().StorePath)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	defer st.Close()

	return st.ForEachSubDag(viper.GetUint64("replay.from"), func(subDag *consensus.CommittedSubDag) bool {
		fmt.Printf("sub-dag %d: leader authority=%d round=%d certificates=%d final_of_schedule=%v\n",
			subDag.SubDagIndex,
			subDag.Leader.Origin(),
			subDag.LeaderRound(),
			len(subDag.Certificates),
			subDag.ReputationScore.FinalOfSchedule,
		)
		return true
	})
}
