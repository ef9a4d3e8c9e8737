package consensus

import (
	"github.com/tcfw/bullshark/pkg/committee"
)

// ReputationScores counts, per authority, how many of its certificates
// directly supported a committed leader. A fresh vector is started on a fixed
// schedule; in between, scores accumulate from one committed sub-DAG to the
// next. Every committee member is always present, including ones that were
// never observed.
type ReputationScores struct {
	ScoresPerAuthority map[committee.ID]uint64 `msgpack:"s"`
	FinalOfSchedule    bool                    `msgpack:"f"`
}

// NewReputationScores returns an all-zero vector covering the whole committee.
func NewReputationScores(c *committee.Committee) ReputationScores {
	scores := make(map[committee.ID]uint64, c.Size())
	for _, a := range c.Authorities() {
		scores[a.ID] = 0
	}
	return ReputationScores{ScoresPerAuthority: scores}
}

func (r ReputationScores) Clone() ReputationScores {
	scores := make(map[committee.ID]uint64, len(r.ScoresPerAuthority))
	for id, s := range r.ScoresPerAuthority {
		scores[id] = s
	}
	return ReputationScores{ScoresPerAuthority: scores}
}

// AddScore increments the score of an authority that must already be covered.
func (r ReputationScores) AddScore(id committee.ID, score uint64) {
	r.ScoresPerAuthority[id] += score
}

func (r ReputationScores) TotalAuthorities() int {
	return len(r.ScoresPerAuthority)
}

func (r ReputationScores) AllZero() bool {
	for _, s := range r.ScoresPerAuthority {
		if s != 0 {
			return false
		}
	}
	return true
}
