package consensus

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/bullshark/internal/utils/logging"
	"github.com/tcfw/bullshark/pkg/certificate"
	"github.com/tcfw/bullshark/pkg/committee"
)

// DefaultSubDagsPerSchedule is how many sub-DAG commits share one reputation
// schedule unless configured otherwise.
const DefaultSubDagsPerSchedule uint64 = 300

// Bullshark is the commit rule of the DAG consensus: it decides, from the
// locally observed certificate DAG alone, which leaders are committed and in
// what order. Two authorities that eventually observe the same DAG derive the
// same sequence of committed sub-DAGs without any further communication.
type Bullshark struct {
	committee *committee.Committee
	store     Store
	schedule  *committee.LeaderSchedule
	metrics   *Metrics

	subDagsPerSchedule     uint64
	badNodesStakeThreshold int

	log *logrus.Entry
}

func NewBullshark(c *committee.Committee, store Store, schedule *committee.LeaderSchedule, opts ...Option) (*Bullshark, error) {
	b := &Bullshark{
		committee:          c,
		store:              store,
		schedule:           schedule,
		metrics:            NewMetrics(nil),
		subDagsPerSchedule: DefaultSubDagsPerSchedule,
		log:                logging.WithField("module", "bullshark"),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}

	if b.subDagsPerSchedule == 0 {
		return nil, errors.New("sub-DAGs per schedule must be positive")
	}

	return b, nil
}

// ProcessCertificate runs one step of the commit state machine for a newly
// DAG-ready certificate. The caller guarantees causal delivery: all parents
// were processed before. When err is nil the outcome classifies the step;
// committed sub-DAGs, if any, are returned oldest leader first and have
// already been persisted.
func (b *Bullshark) ProcessCertificate(state *State, cert *certificate.Certificate) (Outcome, []*CommittedSubDag, error) {
	inserted, err := state.TryInsert(cert)
	if err != nil {
		return OutcomeCommit, nil, err
	}
	if !inserted {
		return b.outcome(OutcomeCertificateBelowCommitRound), nil, nil
	}

	// The certificate's round r votes on a leader elected for round r-1;
	// leaders only exist on even rounds at or above 2.
	r := cert.Round() - 1
	if r%2 != 0 || r < 2 {
		return b.outcome(OutcomeNoLeaderElectedForOddRound), nil, nil
	}
	if r <= state.LastRound.CommittedRound {
		return b.outcome(OutcomeLeaderBelowCommitRound), nil, nil
	}

	leaderID, leader := b.leaderCertificate(r, state.Dag)
	if leader == nil {
		b.log.WithFields(logging.Fields{"round": r, "authority": leaderID}).
			Debug("leader has no certificate yet")
		return b.outcome(OutcomeLeaderNotFound), nil, nil
	}

	// Sum the stake of round r+1 certificates citing the leader. Any two
	// honest authorities that both observe a validity threshold of support
	// must have observed support for the same certificate; this is where
	// safety comes from, so the committee's configured threshold is used
	// verbatim.
	leaderDigest := leader.Digest()
	var stake int64
	for _, slot := range state.Dag[r+1] {
		if slot.Certificate.HasParent(leaderDigest) {
			stake += b.committee.Stake(slot.Certificate.Origin())
		}
	}
	if stake < b.committee.ValidityThreshold() {
		return b.outcome(OutcomeNotEnoughSupportForLeader), nil, nil
	}

	committed, err := b.commitLeaderChain(state, leader)
	if err != nil {
		return OutcomeCommit, nil, err
	}
	return b.outcome(OutcomeCommit), committed, nil
}

// commitLeaderChain commits the supported leader plus every earlier uncommitted
// leader it links to, oldest first. When a commit finishes a reputation
// schedule the leader schedule is updated and the remaining chain re-derived,
// so recursive commits observe the new schedule.
func (b *Bullshark) commitLeaderChain(state *State, leader *certificate.Certificate) ([]*CommittedSubDag, error) {
	var committed []*CommittedSubDag

	leaders := b.orderLeaders(leader, state)
	for len(leaders) > 0 {
		next := leaders[0]
		leaders = leaders[1:]

		subDag, err := b.commitLeader(state, next)
		if err != nil {
			return nil, err
		}
		committed = append(committed, subDag)

		if b.badNodesStakeThreshold > 0 && subDag.ReputationScore.FinalOfSchedule {
			b.schedule.Update(committee.NewSwapTable(
				b.committee,
				subDag.ReputationScore.ScoresPerAuthority,
				b.badNodesStakeThreshold,
			))
			if len(leaders) > 0 {
				leaders = b.orderLeaders(leader, state)
			}
		}
	}

	return committed, nil
}

// commitLeader flattens one leader's uncommitted causal history, scores it,
// persists the sub-DAG and only then advances the in-memory watermark. A crash
// between the two leaves the store ahead of memory, which recovery resolves by
// replaying the last persisted sub-DAG.
func (b *Bullshark) commitLeader(state *State, leader *certificate.Certificate) (*CommittedSubDag, error) {
	sequence := orderDag(leader, state)
	for _, cert := range sequence {
		state.Update(cert)
	}

	index := state.NextSubDagIndex()
	subDag := &CommittedSubDag{
		Certificates:    sequence,
		Leader:          leader,
		SubDagIndex:     index,
		ReputationScore: b.resolveReputationScore(state, sequence, index),
	}

	if err := b.store.WriteConsensusState(state.LastCommitted, subDag); err != nil {
		return nil, errors.Wrap(err, "persisting committed sub-dag")
	}
	state.LastCommittedSubDag = subDag

	b.metrics.LastCommittedRound.Set(float64(leader.Round()))
	b.metrics.CommittedCertificates.Add(float64(len(sequence)))
	b.metrics.CommittedSubDags.Inc()

	b.log.WithFields(logging.Fields{
		"leader_round": leader.Round(),
		"leader":       leader.Origin(),
		"index":        index,
		"certificates": len(sequence),
	}).Debug("committed sub-dag")

	return subDag, nil
}

// resolveReputationScore computes the score vector for the sub-DAG at the
// given index: fresh at the start of each schedule, accumulated otherwise,
// incremented for every certificate citing the previously committed leader.
func (b *Bullshark) resolveReputationScore(state *State, sequence []*certificate.Certificate, index uint64) ReputationScores {
	var scores ReputationScores
	if index == 1 || index%b.subDagsPerSchedule == 0 {
		scores = NewReputationScores(b.committee)
	} else {
		scores = state.LastCommittedSubDag.ReputationScore.Clone()
	}

	if state.LastCommittedSubDag != nil {
		prevLeader := state.LastCommittedSubDag.Leader.Digest()
		for _, cert := range sequence {
			if cert.HasParent(prevLeader) {
				scores.AddScore(cert.Origin(), 1)
			}
		}
	}

	scores.FinalOfSchedule = (index+1)%b.subDagsPerSchedule == 0

	if scores.TotalAuthorities() != b.committee.Size() {
		panic(fmt.Sprintf(
			"reputation scores cover %d authorities, committee has %d",
			scores.TotalAuthorities(), b.committee.Size(),
		))
	}
	return scores
}

func (b *Bullshark) outcome(o Outcome) Outcome {
	b.metrics.Outcomes.WithLabelValues(o.String()).Inc()
	return o
}
