package lightning

import (
	"strings"
)

// LightningAddress is a `user@domain` identifier which lets a sender request
// invoices from `domain` on behalf of `user` (LUD-16).
type LightningAddress struct {
	Username string
	Domain   string
}

// String returns the user@domain form of the address.
func (a LightningAddress) String() string {
	return a.Username + "@" + a.Domain
}

// WellKnownURL returns the LUD-16 discovery URL for the address.
// scheme is "https" outside of local testing.
func (a LightningAddress) WellKnownURL(scheme string) string {
	return scheme + "://" + a.Domain + "/.well-known/lnurlp/" + a.Username
}

// ParseAddress splits a lightning address into username and domain.
// The domain is not checked beyond being non-empty; the discovery request
// is what proves it exists.
func ParseAddress(address string) (LightningAddress, error) {
	parts := strings.Split(strings.TrimSpace(address), "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return LightningAddress{}, &Error{
			Kind:  KindAddressFormat,
			Stage: stageParse,
		}
	}

	return LightningAddress{Username: parts[0], Domain: parts[1]}, nil
}
