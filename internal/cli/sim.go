package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/blake2b"

	"github.com/tcfw/bullshark/internal/config"
	"github.com/tcfw/bullshark/internal/utils/logging"
	"github.com/tcfw/bullshark/pkg/certificate"
	"github.com/tcfw/bullshark/pkg/committee"
	"github.com/tcfw/bullshark/pkg/consensus"
	"github.com/tcfw/bullshark/pkg/store"
)

var (
	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "drive the commit engine over a synthetic fully-connected DAG",
		RunE:  runSim,
	}
)

func init() {
	simCmd.Flags().Uint64P("rounds", "r", 20, "number of DAG rounds to simulate")
	viper.BindPFlag("sim.rounds", simCmd.Flags().Lookup("rounds"))
}

func runSim(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.GetConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	cmt, err := cfg.Consensus().Committee()
	if err != nil {
		return errors.Wrap(err, "building committee")
	}

	rule, err := cfg.Consensus().Rule()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Consensus().StorePath)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	defer st.Close()

	bullshark, err := consensus.NewBullshark(cmt, st, committee.NewLeaderSchedule(cmt, rule),
		consensus.WithSubDagsPerSchedule(cfg.Consensus().SubDagsPerSchedule),
		consensus.WithBadNodesStakeThreshold(cfg.Consensus().BadNodesStakeThreshold),
	)
	if err != nil {
		return errors.Wrap(err, "initing bullshark")
	}

	in := make(chan *certificate.Certificate, 64)
	out := make(chan *consensus.CommittedSubDag, 64)

	engine, err := consensus.NewEngine(bullshark, cfg.Consensus().GCDepth, in, out)
	if err != nil {
		return errors.Wrap(err, "initing engine")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
		close(out)
	}()

	go func() {
		defer close(in)
		feedOptimalDag(ctx, cmt, viper.GetUint64("sim.rounds"), in)
	}()

	for subDag := range out {
		logging.WithFields(logging.Fields{
			"index":        subDag.SubDagIndex,
			"leader_round": subDag.LeaderRound(),
			"leader":       subDag.Leader.Origin(),
			"certificates": len(subDag.Certificates),
		}).Info("committed")
	}

	return <-errCh
}

// feedOptimalDag produces a fully connected DAG: every authority certifies
// every round and cites every certificate of the previous round.
func feedOptimalDag(ctx context.Context, cmt *committee.Committee, rounds uint64, in chan<- *certificate.Certificate) {
	parents := make([]certificate.Digest, 0, cmt.Size())
	for _, g := range certificate.Genesis(cmt) {
		parents = append(parents, g.Digest())
	}

	for round := uint64(1); round <= rounds; round++ {
		next := make([]certificate.Digest, 0, cmt.Size())
		for _, a := range cmt.Authorities() {
			cert, err := certificate.New(certificate.Header{
				Author:  a.ID,
				Round:   round,
				Epoch:   cmt.Epoch(),
				Parents: parents,
			}, simSignature(a.ID, round))
			if err != nil {
				logging.WithError(err).Error("building certificate")
				return
			}
			next = append(next, cert.Digest())

			select {
			case in <- cert:
			case <-ctx.Done():
				return
			}
		}
		parents = next
	}
}

func simSignature(id committee.ID, round uint64) []byte {
	sum := blake2b.Sum256([]byte{byte(id), byte(round), byte(round >> 8)})
	return sum[:]
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
