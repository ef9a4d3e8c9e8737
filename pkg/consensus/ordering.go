package consensus

import (
	"sort"

	"github.com/tcfw/bullshark/pkg/certificate"
	"github.com/tcfw/bullshark/pkg/committee"
)

// leaderCertificate returns the authority elected for the given even round and
// its certificate, if one made it into the DAG. The identity is always known;
// the certificate may be absent when the leader is slow or faulty.
func (b *Bullshark) leaderCertificate(round uint64, dag Dag) (committee.ID, *certificate.Certificate) {
	authority := b.schedule.Leader(round)

	slot, ok := dag[round][authority.ID]
	if !ok {
		return authority.ID, nil
	}
	return authority.ID, slot.Certificate
}

// orderLeaders walks backwards from a freshly supported leader through the
// earlier even rounds, collecting every not-yet-committed leader that is
// causally linked to the chain. Leader rounds whose certificate is missing or
// unlinked are skipped, not terminal: a later leader may still link past them.
// The walk is an explicit loop since a long idle period can stack up many
// skipped leader rounds. Returns the chain in ascending round order.
func (b *Bullshark) orderLeaders(leader *certificate.Certificate, state *State) []*certificate.Certificate {
	if leader.Round()%2 != 0 {
		panic("leader certificate on an odd round")
	}

	toCommit := []*certificate.Certificate{leader}
	head := leader

	for r := leader.Round() - 2; r > state.LastRound.CommittedRound && r >= 2; r -= 2 {
		_, prev := b.leaderCertificate(r, state.Dag)
		if prev == nil {
			continue
		}
		if b.linked(head, prev, state.Dag) {
			toCommit = append(toCommit, prev)
			head = prev
		}
	}

	// ascending round order, so each commit observes a consistent previous
	// sub-DAG while scoring
	for i, j := 0, len(toCommit)-1; i < j; i, j = i+1, j-1 {
		toCommit[i], toCommit[j] = toCommit[j], toCommit[i]
	}
	return toCommit
}

// linked reports whether there is a parent path in the DAG from the later
// leader down to the earlier one.
func (b *Bullshark) linked(later, earlier *certificate.Certificate, dag Dag) bool {
	parents := []*certificate.Certificate{later}

	for r := later.Round(); r > earlier.Round(); r-- {
		var next []*certificate.Certificate
		for _, slot := range dag[r-1] {
			for _, p := range parents {
				if p.HasParent(slot.Digest) {
					next = append(next, slot.Certificate)
					break
				}
			}
		}
		parents = next
	}

	target := earlier.Digest()
	for _, p := range parents {
		if p.Digest().Equals(target) {
			return true
		}
	}
	return false
}

// orderDag flattens the causal history of a leader into a valid linearization
// of the partial order: parents always precede children. Certificates already
// recorded in LastCommitted are pruned, as are duplicate visits within the
// call. The traversal is finite since the DAG is acyclic and bounded below by
// round zero and the GC horizon.
func orderDag(leader *certificate.Certificate, state *State) []*certificate.Certificate {
	ordered := []*certificate.Certificate{}
	seen := map[certificate.Digest]struct{}{leader.Digest(): {}}
	buffer := []*certificate.Certificate{leader}

	minRound := leader.Round()

	for len(buffer) > 0 {
		x := buffer[len(buffer)-1]
		buffer = buffer[:len(buffer)-1]
		ordered = append(ordered, x)

		if x.Round() < minRound {
			minRound = x.Round()
		}

		for _, parent := range x.Header.Parents {
			slot, ok := findByDigest(state.Dag[x.Round()-1], parent)
			if !ok {
				// genesis parent, or already evicted by GC
				continue
			}
			if _, dup := seen[slot.Digest]; dup {
				continue
			}
			if last, ok := state.LastCommitted[slot.Certificate.Origin()]; ok && last >= slot.Certificate.Round() {
				continue
			}
			seen[slot.Digest] = struct{}{}
			buffer = append(buffer, slot.Certificate)
		}
	}

	state.log.WithFields(map[string]interface{}{
		"leader_round": leader.Round(),
		"min_round":    minRound,
		"certificates": len(ordered),
	}).Debug("flattened sub-dag")

	// stable sort keeps the deterministic traversal order within each round
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Round() < ordered[j].Round()
	})
	return ordered
}

func findByDigest(slots map[committee.ID]Slot, d certificate.Digest) (Slot, bool) {
	for _, slot := range slots {
		if slot.Digest.Equals(d) {
			return slot, true
		}
	}
	return Slot{}, false
}
