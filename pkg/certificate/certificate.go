package certificate

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/bullshark/pkg/committee"
)

// Digest is the content identity of a certificate.
type Digest = cid.Cid

// Header carries the consensus-relevant part of a certificate. Parents
// reference certificates of the previous round only; the broadcast layer
// enforces that before a certificate ever reaches this module.
type Header struct {
	Author    committee.ID `msgpack:"a"`
	Round     uint64       `msgpack:"r"`
	Epoch     uint64       `msgpack:"e"`
	Parents   []Digest     `msgpack:"p"`
	CreatedAt int64        `msgpack:"t,omitempty"`
}

// Certificate is a round-stamped, parent-linked proposal that already gathered
// a quorum of signatures via reliable broadcast. The aggregate signature rides
// along opaquely; it was verified before delivery.
type Certificate struct {
	Header    Header `msgpack:"h"`
	Signature []byte `msgpack:"s,omitempty"`

	digest Digest
}

// New builds a certificate and seals its content digest.
func New(h Header, signature []byte) (*Certificate, error) {
	c := &Certificate{Header: h, Signature: signature}
	if _, err := c.computeDigest(); err != nil {
		return nil, err
	}
	return c, nil
}

// Genesis returns the virtual round-0 certificates, one per committee member.
// They only ever serve as the parent set of round 1 and are never inserted
// into the DAG themselves.
func Genesis(c *committee.Committee) []*Certificate {
	out := make([]*Certificate, 0, c.Size())
	for _, a := range c.Authorities() {
		cert, err := New(Header{Author: a.ID, Round: 0, Epoch: c.Epoch()}, nil)
		if err != nil {
			panic(err)
		}
		out = append(out, cert)
	}
	return out
}

// Digest returns the content digest, computing it once on demand for
// certificates restored from storage.
func (c *Certificate) Digest() Digest {
	if !c.digest.Defined() {
		if _, err := c.computeDigest(); err != nil {
			panic(err)
		}
	}
	return c.digest
}

func (c *Certificate) Round() uint64 {
	return c.Header.Round
}

func (c *Certificate) Epoch() uint64 {
	return c.Header.Epoch
}

// Origin is the authority that authored the certificate.
func (c *Certificate) Origin() committee.ID {
	return c.Header.Author
}

// HasParent reports whether the certificate cites the given digest as a
// parent.
func (c *Certificate) HasParent(d Digest) bool {
	for _, p := range c.Header.Parents {
		if p.Equals(d) {
			return true
		}
	}
	return false
}

func (c *Certificate) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling certificate")
	}
	return b, nil
}

func (c *Certificate) Unmarshal(b []byte) error {
	if err := msgpack.Unmarshal(b, c); err != nil {
		return errors.Wrap(err, "unmarshaling certificate")
	}
	c.digest = cid.Undef
	return nil
}

func (c *Certificate) computeDigest() (Digest, error) {
	b, err := msgpack.Marshal(&c.Header)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "marshaling header")
	}

	hash, err := mh.Sum(b, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "hashing header")
	}

	c.digest = cid.NewCidV1(cid.Raw, hash)
	return c.digest, nil
}
