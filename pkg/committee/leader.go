package committee

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Rule deterministically elects the leader authority for an even round. Every
// authority, given the same committee and round, must produce the identical
// result with no communication. Rules must panic on odd rounds: leaders only
// exist every other round and an odd-round request is an internal bug.
type Rule func(c *Committee, round uint64) *Authority

// RoundRobin cycles through the committee in ascending ID order. Used by tests
// and small fixed deployments.
func RoundRobin(c *Committee, round uint64) *Authority {
	assertEvenRound(round)
	return c.byID[int(round/2-1)%len(c.byID)]
}

// StakeWeighted elects leaders proportionally to stake, keyed by a hash of the
// epoch and round so the sequence is unpredictable ahead of the committee
// composition but identical on every node.
func StakeWeighted(c *Committee, round uint64) *Authority {
	assertEvenRound(round)

	var seed [16]byte
	binary.BigEndian.PutUint64(seed[:8], c.epoch)
	binary.BigEndian.PutUint64(seed[8:], round)
	digest := blake2b.Sum256(seed[:])

	target := int64(binary.BigEndian.Uint64(digest[:8]) % uint64(c.totalStake))
	for _, a := range c.byStake {
		target -= a.Stake
		if target < 0 {
			return a
		}
	}

	// unreachable: targets are bounded by the total stake
	panic("stake walk exhausted the committee")
}

func assertEvenRound(round uint64) {
	if round%2 != 0 || round < 2 {
		panic(fmt.Sprintf("no leader exists for round %d", round))
	}
}
