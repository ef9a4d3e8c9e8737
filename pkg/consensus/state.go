package consensus

import (
	"github.com/sirupsen/logrus"

	"github.com/tcfw/bullshark/internal/utils/logging"
	"github.com/tcfw/bullshark/pkg/certificate"
	"github.com/tcfw/bullshark/pkg/committee"
)

// Slot holds the single certificate an authority contributed to a round.
type Slot struct {
	Digest      certificate.Digest
	Certificate *certificate.Certificate
}

// Dag indexes certificates by round and authority. Append-only per slot; an
// authority gets at most one certificate per round. Rounds older than the GC
// depth are evicted wholesale.
type Dag map[uint64]map[committee.ID]Slot

// ConsensusRound is the aggregate commit watermark.
type ConsensusRound struct {
	CommittedRound uint64
	GCRound        uint64
}

func newConsensusRound(committed, gcDepth uint64) ConsensusRound {
	r := ConsensusRound{CommittedRound: committed}
	if committed > gcDepth {
		r.GCRound = committed - gcDepth
	}
	return r
}

// State is the mutable consensus aggregate, owned exclusively by the single
// task driving ProcessCertificate. It is never shared across goroutines.
type State struct {
	Dag                 Dag
	LastCommitted       map[committee.ID]uint64
	LastRound           ConsensusRound
	LastCommittedSubDag *CommittedSubDag

	gcDepth uint64
	log     *logrus.Entry
}

func NewState(gcDepth uint64) *State {
	return &State{
		Dag:           make(Dag),
		LastCommitted: make(map[committee.ID]uint64),
		gcDepth:       gcDepth,
		log:           logging.WithField("module", "consensus"),
	}
}

// RecoveredState rebuilds the in-memory aggregate from the persisted
// last-committed map and the last emitted sub-DAG, so the engine resumes
// without re-deriving committed history.
func RecoveredState(gcDepth uint64, lastCommitted map[committee.ID]uint64, lastSubDag *CommittedSubDag) *State {
	s := NewState(gcDepth)
	for id, round := range lastCommitted {
		s.LastCommitted[id] = round
	}
	s.LastCommittedSubDag = lastSubDag
	s.LastRound = newConsensusRound(maxRound(s.LastCommitted), gcDepth)
	return s
}

// TryInsert adds a certificate to the DAG. It returns false when the
// certificate is stale: at or below its author's committed round, or below
// the GC horizon. A conflicting certificate for an occupied slot yields a
// CertificateEquivocationError; re-inserting the identical certificate is
// harmless.
func (s *State) TryInsert(cert *certificate.Certificate) (bool, error) {
	round := cert.Round()

	if round <= s.LastRound.GCRound {
		return false, nil
	}
	if last, ok := s.LastCommitted[cert.Origin()]; ok && round <= last {
		return false, nil
	}

	slots, ok := s.Dag[round]
	if !ok {
		slots = make(map[committee.ID]Slot)
		s.Dag[round] = slots
	}

	if existing, ok := slots[cert.Origin()]; ok {
		if existing.Digest.Equals(cert.Digest()) {
			return true, nil
		}
		return false, &CertificateEquivocationError{Incoming: cert, Existing: existing.Certificate}
	}

	slots[cert.Origin()] = Slot{Digest: cert.Digest(), Certificate: cert}
	return true, nil
}

// Update records a committed certificate: advances its author's committed
// round, the aggregate watermark and evicts DAG rounds beyond the GC depth.
// Committed rounds never decrease.
func (s *State) Update(cert *certificate.Certificate) {
	if last := s.LastCommitted[cert.Origin()]; cert.Round() > last {
		s.LastCommitted[cert.Origin()] = cert.Round()
	}

	committed := maxRound(s.LastCommitted)
	s.LastRound = newConsensusRound(committed, s.gcDepth)

	for r := range s.Dag {
		if r+s.gcDepth <= committed {
			delete(s.Dag, r)
		}
	}
}

// NextSubDagIndex is the sequence number the next commit must use.
func (s *State) NextSubDagIndex() uint64 {
	if s.LastCommittedSubDag == nil {
		return 1
	}
	return s.LastCommittedSubDag.SubDagIndex + 1
}

func maxRound(rounds map[committee.ID]uint64) uint64 {
	var max uint64
	for _, r := range rounds {
		if r > max {
			max = r
		}
	}
	return max
}
