package committee

import (
	"encoding/binary"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/tcfw/bullshark/internal/utils/logging"
)

// LeaderSchedule elects the leader for each even round, layering an optional
// swap table over the base rule so that authorities flagged as consistently
// unproductive get their leader slots taken over by well performing ones.
type LeaderSchedule struct {
	committee *Committee
	rule      Rule

	mu   sync.RWMutex
	swap *SwapTable
}

func NewLeaderSchedule(c *Committee, rule Rule) *LeaderSchedule {
	return &LeaderSchedule{
		committee: c,
		rule:      rule,
	}
}

// Leader returns the authority elected for the given even round, after any
// active swap. Panics on odd rounds.
func (s *LeaderSchedule) Leader(round uint64) *Authority {
	elected := s.rule(s.committee, round)

	s.mu.RLock()
	swap := s.swap
	s.mu.RUnlock()

	if swap == nil {
		return elected
	}
	if good := swap.Swap(elected.ID, round); good != nil {
		return good
	}
	return elected
}

// Update installs a new swap table. Called when a committed sub-DAG carries
// the final reputation scores of a schedule.
func (s *LeaderSchedule) Update(table *SwapTable) {
	s.mu.Lock()
	s.swap = table
	s.mu.Unlock()

	logging.Entry().WithField("bad_nodes", len(table.bad)).Debug("leader schedule updated")
}

// SwapTable maps the lowest scored authorities (up to a stake share) to
// replacements drawn from the highest scored ones. Built once per schedule
// from the final reputation scores; immutable afterwards.
type SwapTable struct {
	good []*Authority
	bad  map[ID]*Authority
}

// NewSwapTable computes the swap table for the given scores.
// stakeThresholdPct is the percentage of total stake to classify on each end;
// it must be below 34 or else a correct node could be flagged.
func NewSwapTable(c *Committee, scores map[ID]uint64, stakeThresholdPct int) *SwapTable {
	if stakeThresholdPct >= 34 {
		panic("bad node stake threshold must be below the fault bound")
	}

	asc := sortedByScore(c, scores, false)
	desc := sortedByScore(c, scores, true)

	table := &SwapTable{
		good: firstNodesWithinStake(c, desc, stakeThresholdPct),
		bad:  make(map[ID]*Authority),
	}
	for _, a := range firstNodesWithinStake(c, asc, stakeThresholdPct) {
		table.bad[a.ID] = a
	}
	return table
}

// Swap returns the replacement for the given authority at the given round, or
// nil when the authority keeps its slot.
func (t *SwapTable) Swap(id ID, round uint64) *Authority {
	if _, ok := t.bad[id]; !ok {
		return nil
	}
	if len(t.good) == 0 {
		return nil
	}

	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], round)
	digest := blake2b.Sum256(seed[:])

	return t.good[binary.BigEndian.Uint64(digest[:8])%uint64(len(t.good))]
}

func sortedByScore(c *Committee, scores map[ID]uint64, desc bool) []*Authority {
	out := make([]*Authority, len(c.byID))
	copy(out, c.byID)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i].ID], scores[out[j].ID]
		if si == sj {
			// ties resolve towards opposite ends of the ID space, so the
			// two classifications never pick the same authority
			if desc {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if desc {
			return si > sj
		}
		return si < sj
	})
	return out
}

// firstNodesWithinStake collects authorities from the front of the ordering
// while their cumulative stake stays within the threshold share.
func firstNodesWithinStake(c *Committee, ordered []*Authority, stakeThresholdPct int) []*Authority {
	limit := int64(stakeThresholdPct) * c.TotalStake() / 100

	var out []*Authority
	var stake int64
	for _, a := range ordered {
		stake += a.Stake
		if stake > limit {
			break
		}
		out = append(out, a)
	}
	return out
}
