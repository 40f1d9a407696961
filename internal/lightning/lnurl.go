package lightning

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const lnurlHRP = "lnurl"

// EncodeLNURL bech32-encodes url as an uppercase LNURL string, the form
// wallets expect when scanning a QR code.
func EncodeLNURL(url string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}

	str, err := bech32.Encode(lnurlHRP, converted)
	if err != nil {
		return "", err
	}

	return strings.ToUpper(str), nil
}

// DecodeLNURL reverses EncodeLNURL. A "lightning:" prefix is accepted.
func DecodeLNURL(lnurl string) (string, error) {
	lnurl = strings.TrimPrefix(strings.ToLower(lnurl), "lightning:")

	// LNURLs routinely exceed the 90 character limit of BIP-173.
	hrp, data, err := bech32.DecodeNoLimit(lnurl)
	if err != nil {
		return "", err
	}

	if hrp != lnurlHRP {
		return "", fmt.Errorf("incorrect hrp for LNURL: expected "+
			"'%s', got '%s'", lnurlHRP, hrp)
	}

	data, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
