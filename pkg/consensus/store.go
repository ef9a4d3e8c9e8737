package consensus

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/tcfw/bullshark/pkg/committee"
)

// Store persists committed consensus state. WriteConsensusState is called
// exactly once per emitted sub-DAG, synchronously, before the in-memory
// watermark advances; indices arrive strictly increasing and gapless. A write
// failure must halt commit processing.
type Store interface {
	WriteConsensusState(lastCommitted map[committee.ID]uint64, subDag *CommittedSubDag) error
	ReadLastConsensusState() (map[committee.ID]uint64, *CommittedSubDag, error)
}

var (
	_ Store = (*MemStore)(nil)
)

// MemStore keeps consensus state in memory. Useful for tests and ephemeral
// deployments that accept replaying from the broadcast layer on restart.
type MemStore struct {
	mu sync.RWMutex

	lastCommitted map[committee.ID]uint64
	subDags       []*CommittedSubDag
}

func NewMemStore() *MemStore {
	return &MemStore{
		lastCommitted: make(map[committee.ID]uint64),
	}
}

func (m *MemStore) WriteConsensusState(lastCommitted map[committee.ID]uint64, subDag *CommittedSubDag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.subDags); n > 0 && subDag.SubDagIndex != m.subDags[n-1].SubDagIndex+1 {
		return errors.Errorf("sub-dag index %d out of sequence", subDag.SubDagIndex)
	}

	for id, round := range lastCommitted {
		m.lastCommitted[id] = round
	}
	m.subDags = append(m.subDags, subDag)
	return nil
}

func (m *MemStore) ReadLastConsensusState() (map[committee.ID]uint64, *CommittedSubDag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lastCommitted := make(map[committee.ID]uint64, len(m.lastCommitted))
	for id, round := range m.lastCommitted {
		lastCommitted[id] = round
	}

	if len(m.subDags) == 0 {
		return lastCommitted, nil, nil
	}
	return lastCommitted, m.subDags[len(m.subDags)-1], nil
}

// SubDags returns every persisted sub-DAG in commit order.
func (m *MemStore) SubDags() []*CommittedSubDag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*CommittedSubDag, len(m.subDags))
	copy(out, m.subDags)
	return out
}
