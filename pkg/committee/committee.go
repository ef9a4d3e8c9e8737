package committee

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// MaxStake bounds the total voting power of a committee so that stake sums
// can never overflow while accumulating support.
const MaxStake = int64(math.MaxInt64) / 8

// ID identifies an authority within a committee for the duration of an epoch.
type ID uint32

// Authority is a committee member with a fixed stake weight. The public key is
// carried opaquely; signature verification happens upstream of this module.
type Authority struct {
	ID     ID     `msgpack:"i"`
	Stake  int64  `msgpack:"s"`
	PubKey []byte `msgpack:"k,omitempty"`
}

func (a *Authority) validate() error {
	if a == nil {
		return errors.New("nil authority")
	}
	if a.Stake <= 0 {
		return errors.New("authority has non-positive stake")
	}
	return nil
}

// Committee is the immutable stake table for one epoch. Authorities are kept
// in two orders: descending stake (for the stake-weighted leader walk) and
// ascending ID (for round robin and score iteration).
type Committee struct {
	epoch uint64

	byStake []*Authority
	byID    []*Authority
	index   map[ID]*Authority

	totalStake int64
}

func New(epoch uint64, authorities []*Authority) (*Committee, error) {
	if len(authorities) == 0 {
		return nil, errors.New("empty committee")
	}

	c := &Committee{
		epoch:   epoch,
		byStake: make([]*Authority, 0, len(authorities)),
		byID:    make([]*Authority, 0, len(authorities)),
		index:   make(map[ID]*Authority, len(authorities)),
	}

	for _, a := range authorities {
		if err := a.validate(); err != nil {
			return nil, errors.Wrap(err, "validating authority")
		}
		if _, ok := c.index[a.ID]; ok {
			return nil, errors.Errorf("duplicate authority id %d", a.ID)
		}
		c.index[a.ID] = a
		c.byStake = append(c.byStake, a)
		c.byID = append(c.byID, a)

		c.totalStake = safeAddClip(c.totalStake, a.Stake)
		if c.totalStake > MaxStake {
			return nil, errors.Errorf("total stake exceeds MaxStake: %v", c.totalStake)
		}
	}

	sort.Slice(c.byStake, func(i, j int) bool {
		if c.byStake[i].Stake == c.byStake[j].Stake {
			return c.byStake[i].ID < c.byStake[j].ID
		}
		return c.byStake[i].Stake > c.byStake[j].Stake
	})
	sort.Slice(c.byID, func(i, j int) bool { return c.byID[i].ID < c.byID[j].ID })

	return c, nil
}

func (c *Committee) Epoch() uint64 {
	return c.epoch
}

func (c *Committee) Size() int {
	return len(c.byID)
}

// Authorities returns the members in ascending ID order.
func (c *Committee) Authorities() []*Authority {
	return c.byID
}

func (c *Committee) Authority(id ID) (*Authority, bool) {
	a, ok := c.index[id]
	return a, ok
}

// Stake returns the stake of an authority, or zero for unknown identities.
func (c *Committee) Stake(id ID) int64 {
	a, ok := c.index[id]
	if !ok {
		return 0
	}
	return a.Stake
}

func (c *Committee) TotalStake() int64 {
	return c.totalStake
}

// ValidityThreshold is the minimum stake that guarantees at least one honest
// authority is represented (f+1 when N = 3f+1). Two honest views that each
// gather this much support must overlap on the same certificate.
func (c *Committee) ValidityThreshold() int64 {
	return (c.totalStake + 2) / 3
}

// QuorumThreshold is the 2f+1 equivalent for this stake distribution.
func (c *Committee) QuorumThreshold() int64 {
	return 2*c.totalStake/3 + 1
}

func safeAddClip(a, b int64) int64 {
	c, overflow := safeAdd(a, b)
	if overflow {
		if b < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return c
}

func safeAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return -1, true
	} else if b < 0 && a < math.MinInt64-b {
		return -1, true
	}
	return a + b, false
}
