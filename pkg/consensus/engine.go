package consensus

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/bullshark/internal/utils/logging"
	"github.com/tcfw/bullshark/pkg/certificate"
)

// Engine is the single task that owns the consensus state. Certificates are
// funneled in over a channel in causal order; committed sub-DAGs flow out the
// other side in commit order. Nothing else may touch the state while the
// engine runs.
type Engine struct {
	bullshark *Bullshark
	state     *State

	in  <-chan *certificate.Certificate
	out chan<- *CommittedSubDag

	committedRound atomic.Uint64

	log *logrus.Entry
}

// NewEngine recovers the last persisted consensus state from the Bullshark
// store and prepares the processing task. Sequence numbering resumes gapless
// from where the store left off.
func NewEngine(b *Bullshark, gcDepth uint64, in <-chan *certificate.Certificate, out chan<- *CommittedSubDag) (*Engine, error) {
	lastCommitted, lastSubDag, err := b.store.ReadLastConsensusState()
	if err != nil {
		return nil, errors.Wrap(err, "recovering consensus state")
	}

	e := &Engine{
		bullshark: b,
		state:     RecoveredState(gcDepth, lastCommitted, lastSubDag),
		in:        in,
		out:       out,
		log:       logging.WithField("module", "consensus-engine"),
	}
	e.committedRound.Store(e.state.LastRound.CommittedRound)

	if lastSubDag != nil {
		e.log.WithFields(logging.Fields{
			"index":           lastSubDag.SubDagIndex,
			"committed_round": e.state.LastRound.CommittedRound,
		}).Info("resumed from persisted consensus state")
	}

	return e, nil
}

// Run processes certificates until the context is cancelled or the input
// channel closes. Equivocating certificates are dropped and logged; store
// failures stop the engine, since committing without durable persistence
// risks losing sub-DAGs on crash.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cert, ok := <-e.in:
			if !ok {
				return nil
			}

			outcome, committed, err := e.bullshark.ProcessCertificate(e.state, cert)
			if err != nil {
				var eqErr *CertificateEquivocationError
				if errors.As(err, &eqErr) {
					e.log.WithError(err).Warn("dropping equivocating certificate")
					continue
				}
				return errors.Wrap(err, "processing certificate")
			}

			if outcome != OutcomeCommit {
				continue
			}
			e.committedRound.Store(e.state.LastRound.CommittedRound)

			for _, subDag := range committed {
				select {
				case e.out <- subDag:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// CommittedRound is the highest round with a committed leader. Safe to read
// from other goroutines.
func (e *Engine) CommittedRound() uint64 {
	return e.committedRound.Load()
}
