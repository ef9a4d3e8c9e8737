package consensus

import (
	"github.com/tcfw/bullshark/pkg/certificate"
)

// CommittedSubDag is the flattened causal history of one committed leader, in
// commit order (oldest certificates first, leader last). SubDagIndex is the
// global commit sequence number: strictly increasing, gapless, starting at 1.
// Immutable once built.
type CommittedSubDag struct {
	Certificates    []*certificate.Certificate `msgpack:"c"`
	Leader          *certificate.Certificate   `msgpack:"l"`
	SubDagIndex     uint64                     `msgpack:"i"`
	ReputationScore ReputationScores           `msgpack:"r"`
}

func (s *CommittedSubDag) LeaderRound() uint64 {
	return s.Leader.Round()
}
