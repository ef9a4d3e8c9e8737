package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/bullshark/pkg/certificate"
)

func runEngine(t *testing.T, b *Bullshark, certs []*certificate.Certificate) []*CommittedSubDag {
	t.Helper()

	in := make(chan *certificate.Certificate, len(certs))
	out := make(chan *CommittedSubDag, len(certs))

	e, err := NewEngine(b, testGCDepth, in, out)
	require.NoError(t, err)

	for _, cert := range certs {
		in <- cert
	}
	close(in)

	require.NoError(t, e.Run(context.Background()))
	close(out)

	var committed []*CommittedSubDag
	for subDag := range out {
		committed = append(committed, subDag)
	}
	return committed
}

func TestEngineCommit(t *testing.T) {
	cmt := newTestCommittee(t)
	ids := testIDs(cmt)
	store := NewMemStore()
	b := newTestBullshark(t, cmt, store)

	certs, parents := makeOptimalCertificates(t, cmt, 1, 2, genesisDigests(cmt), ids)
	certs = append(certs,
		mockCertificate(t, cmt, ids[0], 3, parents),
		mockCertificate(t, cmt, ids[1], 3, parents),
	)

	in := make(chan *certificate.Certificate, len(certs))
	out := make(chan *CommittedSubDag, len(certs))

	e, err := NewEngine(b, testGCDepth, in, out)
	require.NoError(t, err)
	assert.Zero(t, e.CommittedRound())

	for _, cert := range certs {
		in <- cert
	}
	close(in)
	require.NoError(t, e.Run(context.Background()))

	subDag := <-out
	assert.Equal(t, uint64(1), subDag.SubDagIndex)
	assert.Equal(t, uint64(2), subDag.LeaderRound())
	assert.Equal(t, uint64(2), e.CommittedRound())
}

// A fresh engine over the same store resumes numbering from the persisted
// sub-DAG and never re-emits committed certificates.
func TestEngineRecovery(t *testing.T) {
	cmt := newTestCommittee(t)
	ids := testIDs(cmt)
	store := NewMemStore()

	certs, _ := makeOptimalCertificates(t, cmt, 1, 5, genesisDigests(cmt), ids)
	size := len(ids)

	committed := runEngine(t, newTestBullshark(t, cmt, store), certs[:3*size])
	require.Len(t, committed, 1)
	require.Equal(t, uint64(1), committed[0].SubDagIndex)

	// restart: the broadcast layer re-delivers from round 3 onwards
	b := newTestBullshark(t, cmt, store)
	in := make(chan *certificate.Certificate, len(certs))
	out := make(chan *CommittedSubDag, len(certs))

	e, err := NewEngine(b, testGCDepth, in, out)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.CommittedRound())

	for _, cert := range certs[2*size:] {
		in <- cert
	}
	close(in)
	require.NoError(t, e.Run(context.Background()))
	close(out)

	var resumed []*CommittedSubDag
	for subDag := range out {
		resumed = append(resumed, subDag)
	}
	require.Len(t, resumed, 1)
	assert.Equal(t, uint64(2), resumed[0].SubDagIndex)
	assert.Equal(t, uint64(4), resumed[0].LeaderRound())
	for _, cert := range resumed[0].Certificates {
		assert.Greater(t, cert.Round(), uint64(2))
	}

	persisted := store.SubDags()
	require.Len(t, persisted, 2)
	assert.Equal(t, uint64(2), persisted[1].SubDagIndex)
}

func TestEngineDropsEquivocations(t *testing.T) {
	cmt := newTestCommittee(t)
	ids := testIDs(cmt)
	b := newTestBullshark(t, cmt, NewMemStore())

	genesis := genesisDigests(cmt)
	certs, parents := makeOptimalCertificates(t, cmt, 1, 2, genesis, ids)

	withConflict := make([]*certificate.Certificate, 0, len(certs)+3)
	withConflict = append(withConflict, certs...)
	withConflict = append(withConflict, mockCertificateWithEpoch(t, cmt, ids[0], 1, 9, genesis))
	withConflict = append(withConflict,
		mockCertificate(t, cmt, ids[0], 3, parents),
		mockCertificate(t, cmt, ids[1], 3, parents),
	)

	committed := runEngine(t, b, withConflict)
	require.Len(t, committed, 1)
	assert.Equal(t, uint64(2), committed[0].LeaderRound())
}
