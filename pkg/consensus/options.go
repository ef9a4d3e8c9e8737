package consensus

import (
	"github.com/pkg/errors"
)

type Option func(*Bullshark) error

// WithSubDagsPerSchedule sets how many commits share one reputation schedule.
func WithSubDagsPerSchedule(n uint64) Option {
	return func(b *Bullshark) error {
		if n == 0 {
			return errors.New("schedule length must be positive")
		}
		b.subDagsPerSchedule = n
		return nil
	}
}

// WithBadNodesStakeThreshold enables leader swapping: when the scores of a
// schedule are final, authorities holding up to pct percent of total stake
// with the lowest scores lose their leader slots to the highest scored ones.
// Zero disables swapping.
func WithBadNodesStakeThreshold(pct int) Option {
	return func(b *Bullshark) error {
		if pct < 0 || pct >= 34 {
			return errors.New("bad node stake threshold must be within [0, 33]")
		}
		b.badNodesStakeThreshold = pct
		return nil
	}
}

// WithMetrics registers the consensus metrics against the given registerer.
func WithMetrics(m *Metrics) Option {
	return func(b *Bullshark) error {
		b.metrics = m
		return nil
	}
}
