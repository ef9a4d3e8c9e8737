package store

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/bullshark/pkg/committee"
	"github.com/tcfw/bullshark/pkg/consensus"
)

const (
	cacheSize = 1 << 20 * 16
)

var (
	_ consensus.Store = (*ConsensusStore)(nil)

	lastCommittedKey = []byte("consensus/last_committed")
	subDagKeyPrefix  = []byte("consensus/sub_dag/")
)

// ConsensusStore durably records committed sub-DAGs keyed by their sequence
// index, plus the last-committed round per authority. Append-only: entries are
// never rewritten.
type ConsensusStore struct {
	db *pebble.DB
}

func Open(path string) (*ConsensusStore, error) {
	c := pebble.NewCache(cacheSize)
	defer c.Unref()

	db, err := pebble.Open(path, &pebble.Options{Cache: c})
	if err != nil {
		return nil, errors.Wrap(err, "opening consensus store")
	}

	return &ConsensusStore{db: db}, nil
}

func (s *ConsensusStore) Close() error {
	return s.db.Close()
}

// WriteConsensusState appends one committed sub-DAG and the updated
// last-committed map in a single synced batch, so either both survive a crash
// or neither does.
func (s *ConsensusStore) WriteConsensusState(lastCommitted map[committee.ID]uint64, subDag *consensus.CommittedSubDag) error {
	lc, err := msgpack.Marshal(lastCommitted)
	if err != nil {
		return errors.Wrap(err, "marshaling last committed rounds")
	}

	sd, err := msgpack.Marshal(subDag)
	if err != nil {
		return errors.Wrap(err, "marshaling sub-dag")
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(lastCommittedKey, lc, nil); err != nil {
		return errors.Wrap(err, "staging last committed rounds")
	}
	if err := b.Set(subDagKey(subDag.SubDagIndex), sd, nil); err != nil {
		return errors.Wrap(err, "staging sub-dag")
	}

	// synced before the caller advances its in-memory watermark
	if err := s.db.Apply(b, pebble.Sync); err != nil {
		return errors.Wrap(err, "applying consensus state batch")
	}
	return nil
}

// ReadLastConsensusState returns the persisted last-committed map and the sub-
// DAG with the highest index, or an empty map and nil when nothing was ever
// committed.
func (s *ConsensusStore) ReadLastConsensusState() (map[committee.ID]uint64, *consensus.CommittedSubDag, error) {
	lastCommitted := make(map[committee.ID]uint64)

	v, closer, err := s.db.Get(lastCommittedKey)
	if err != nil && err != pebble.ErrNotFound {
		return nil, nil, errors.Wrap(err, "reading last committed rounds")
	}
	if err == nil {
		if err := msgpack.Unmarshal(v, &lastCommitted); err != nil {
			closer.Close()
			return nil, nil, errors.Wrap(err, "unmarshaling last committed rounds")
		}
		closer.Close()
	}

	iter := s.db.NewIter(subDagBounds())
	defer iter.Close()

	if !iter.Last() {
		return lastCommitted, nil, nil
	}

	subDag := &consensus.CommittedSubDag{}
	if err := msgpack.Unmarshal(iter.Value(), subDag); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshaling sub-dag")
	}

	return lastCommitted, subDag, nil
}

// ForEachSubDag replays persisted sub-DAGs in commit order, starting at the
// given index. The callback returning false stops the scan.
func (s *ConsensusStore) ForEachSubDag(from uint64, fn func(*consensus.CommittedSubDag) bool) error {
	iter := s.db.NewIter(subDagBounds())
	defer iter.Close()

	for ok := iter.SeekGE(subDagKey(from)); ok; ok = iter.Next() {
		subDag := &consensus.CommittedSubDag{}
		if err := msgpack.Unmarshal(iter.Value(), subDag); err != nil {
			return errors.Wrap(err, "unmarshaling sub-dag")
		}
		if !fn(subDag) {
			break
		}
	}
	return nil
}

func subDagKey(index uint64) []byte {
	key := make([]byte, len(subDagKeyPrefix)+8)
	copy(key, subDagKeyPrefix)
	binary.BigEndian.PutUint64(key[len(subDagKeyPrefix):], index)
	return key
}

func subDagBounds() *pebble.IterOptions {
	upper := make([]byte, len(subDagKeyPrefix))
	copy(upper, subDagKeyPrefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{
		LowerBound: subDagKeyPrefix,
		UpperBound: upper,
	}
}
