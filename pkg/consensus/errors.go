package consensus

import (
	"fmt"

	"github.com/tcfw/bullshark/pkg/certificate"
)

// CertificateEquivocationError reports a second, conflicting certificate for a
// (round, authority) slot that is already occupied. The caller decides whether
// to drop the certificate or flag the sender as faulty; this module never
// admits both.
type CertificateEquivocationError struct {
	Incoming *certificate.Certificate
	Existing *certificate.Certificate
}

func (e *CertificateEquivocationError) Error() string {
	return fmt.Sprintf(
		"certificate %s equivocates with already inserted %s (authority %d, round %d)",
		e.Incoming.Digest(), e.Existing.Digest(), e.Incoming.Origin(), e.Incoming.Round(),
	)
}
