package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/bullshark/pkg/committee"
)

func testCommittee(t *testing.T) *committee.Committee {
	t.Helper()

	authorities := make([]*committee.Authority, 0, 4)
	for i := 0; i < 4; i++ {
		authorities = append(authorities, &committee.Authority{ID: committee.ID(i), Stake: 1})
	}

	c, err := committee.New(0, authorities)
	require.NoError(t, err)
	return c
}

func TestDigestDeterminism(t *testing.T) {
	h := Header{Author: 1, Round: 3, Epoch: 0}

	a, err := New(h, nil)
	require.NoError(t, err)
	b, err := New(h, nil)
	require.NoError(t, err)
	assert.True(t, a.Digest().Equals(b.Digest()))

	// the signature is not part of the identity
	c, err := New(h, []byte("sig"))
	require.NoError(t, err)
	assert.True(t, a.Digest().Equals(c.Digest()))

	// any header change is a different certificate
	for _, other := range []Header{
		{Author: 2, Round: 3, Epoch: 0},
		{Author: 1, Round: 4, Epoch: 0},
		{Author: 1, Round: 3, Epoch: 1},
		{Author: 1, Round: 3, Epoch: 0, Parents: []Digest{a.Digest()}},
	} {
		d, err := New(other, nil)
		require.NoError(t, err)
		assert.False(t, a.Digest().Equals(d.Digest()))
	}
}

func TestGenesis(t *testing.T) {
	cmt := testCommittee(t)

	genesis := Genesis(cmt)
	require.Len(t, genesis, cmt.Size())

	seen := make(map[Digest]struct{})
	for i, g := range genesis {
		assert.Equal(t, uint64(0), g.Round())
		assert.Equal(t, committee.ID(i), g.Origin())
		assert.Empty(t, g.Header.Parents)
		seen[g.Digest()] = struct{}{}
	}
	assert.Len(t, seen, cmt.Size())
}

func TestHasParent(t *testing.T) {
	cmt := testCommittee(t)

	var parents []Digest
	for _, g := range Genesis(cmt) {
		parents = append(parents, g.Digest())
	}

	cert, err := New(Header{Author: 0, Round: 1, Parents: parents}, nil)
	require.NoError(t, err)

	for _, p := range parents {
		assert.True(t, cert.HasParent(p))
	}

	stranger, err := New(Header{Author: 3, Round: 7}, nil)
	require.NoError(t, err)
	assert.False(t, cert.HasParent(stranger.Digest()))
}

func TestMarshalRoundTrip(t *testing.T) {
	cmt := testCommittee(t)

	var parents []Digest
	for _, g := range Genesis(cmt) {
		parents = append(parents, g.Digest())
	}

	cert, err := New(Header{Author: 2, Round: 5, Epoch: 1, Parents: parents}, []byte("sig"))
	require.NoError(t, err)

	b, err := cert.Marshal()
	require.NoError(t, err)

	restored := &Certificate{}
	require.NoError(t, restored.Unmarshal(b))

	assert.Equal(t, cert.Origin(), restored.Origin())
	assert.Equal(t, cert.Round(), restored.Round())
	assert.Equal(t, cert.Epoch(), restored.Epoch())
	assert.Equal(t, cert.Signature, restored.Signature)

	// the digest is recomputed lazily and matches the original
	assert.True(t, cert.Digest().Equals(restored.Digest()))
}
