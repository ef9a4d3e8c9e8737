package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tcfw/bullshark/pkg/certificate"
	"github.com/tcfw/bullshark/pkg/committee"
)

func newTestCommittee(t *testing.T) *committee.Committee {
	t.Helper()

	authorities := make([]*committee.Authority, 0, 4)
	for i := 0; i < 4; i++ {
		authorities = append(authorities, &committee.Authority{
			ID:    committee.ID(i),
			Stake: 1,
		})
	}

	cmt, err := committee.New(0, authorities)
	require.NoError(t, err)
	return cmt
}

func newTestBullshark(t *testing.T, cmt *committee.Committee, st Store, opts ...Option) *Bullshark {
	t.Helper()

	schedule := committee.NewLeaderSchedule(cmt, committee.RoundRobin)
	b, err := NewBullshark(cmt, st, schedule, opts...)
	require.NoError(t, err)
	return b
}

func genesisDigests(cmt *committee.Committee) []certificate.Digest {
	parents := make([]certificate.Digest, 0, cmt.Size())
	for _, g := range certificate.Genesis(cmt) {
		parents = append(parents, g.Digest())
	}
	return parents
}

func testIDs(cmt *committee.Committee) []committee.ID {
	ids := make([]committee.ID, 0, cmt.Size())
	for _, a := range cmt.Authorities() {
		ids = append(ids, a.ID)
	}
	return ids
}

// mockCertificate builds a certificate in the test epoch with the given
// parents.
func mockCertificate(t *testing.T, cmt *committee.Committee, author committee.ID, round uint64, parents []certificate.Digest) *certificate.Certificate {
	t.Helper()
	return mockCertificateWithEpoch(t, cmt, author, round, cmt.Epoch(), parents)
}

func mockCertificateWithEpoch(t *testing.T, cmt *committee.Committee, author committee.ID, round, epoch uint64, parents []certificate.Digest) *certificate.Certificate {
	t.Helper()

	cert, err := certificate.New(certificate.Header{
		Author:  author,
		Round:   round,
		Epoch:   epoch,
		Parents: parents,
	}, nil)
	require.NoError(t, err)
	return cert
}

// makeOptimalCertificates builds a fully connected DAG slice: every listed
// authority certifies every round in [from, to] and cites every certificate of
// the previous round.
func makeOptimalCertificates(t *testing.T, cmt *committee.Committee, from, to uint64, parents []certificate.Digest, ids []committee.ID) ([]*certificate.Certificate, []certificate.Digest) {
	t.Helper()

	var out []*certificate.Certificate
	for round := from; round <= to; round++ {
		next := make([]certificate.Digest, 0, len(ids))
		for _, id := range ids {
			cert := mockCertificate(t, cmt, id, round, parents)
			out = append(out, cert)
			next = append(next, cert.Digest())
		}
		parents = next
	}
	return out, parents
}

type leaderSupport int

const (
	supportFull leaderSupport = iota
	supportWeak
	supportNone
)

type leaderConfig struct {
	authority committee.ID
	support   leaderSupport
}

// makeCertificatesWithLeaderConfig builds a fully connected DAG except for the
// configured leader rounds: a weakly supported leader is cited by exactly one
// certificate of the next round, an unsupported one by none.
func makeCertificatesWithLeaderConfig(t *testing.T, cmt *committee.Committee, from, to uint64, parents []certificate.Digest, ids []committee.ID, configs map[uint64]leaderConfig) ([]*certificate.Certificate, []certificate.Digest) {
	t.Helper()

	var out []*certificate.Certificate
	var leaderDigest certificate.Digest

	for round := from; round <= to; round++ {
		cfg, restricted := configs[round-1]

		next := make([]certificate.Digest, 0, len(ids))
		for i, id := range ids {
			certParents := parents
			if restricted && (cfg.support == supportNone || i > 0) {
				certParents = withoutDigest(parents, leaderDigest)
			}

			cert := mockCertificate(t, cmt, id, round, certParents)
			out = append(out, cert)
			next = append(next, cert.Digest())

			if rc, ok := configs[round]; ok && rc.authority == id {
				leaderDigest = cert.Digest()
			}
		}
		parents = next
	}
	return out, parents
}

func withoutDigest(digests []certificate.Digest, drop certificate.Digest) []certificate.Digest {
	out := make([]certificate.Digest, 0, len(digests))
	for _, d := range digests {
		if !d.Equals(drop) {
			out = append(out, d)
		}
	}
	return out
}

// processAll feeds certificates through the state machine in order and
// collects every committed sub-DAG.
func processAll(t *testing.T, b *Bullshark, state *State, certs []*certificate.Certificate) []*CommittedSubDag {
	t.Helper()

	var all []*CommittedSubDag
	for _, cert := range certs {
		_, committed, err := b.ProcessCertificate(state, cert)
		require.NoError(t, err)
		all = append(all, committed...)
	}
	return all
}
