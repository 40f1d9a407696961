package lightning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/dustin/go-humanize"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/zpay32"
)

// PaymentStatus is the display status of a descriptor. Settlement is never
// tracked, so pending is the only value.
type PaymentStatus string

const StatusPending PaymentStatus = "pending"

const defaultRecipientLabel = "support agent"

// PaymentDescriptor is the UI-ready result of a successful resolution.
// It is built once, at the end of a resolution, and never modified.
type PaymentDescriptor struct {
	AmountSats     uint64
	PaymentRequest string
	// PaymentHash is the invoice's payment hash when it could be decoded,
	// otherwise a SHA-256 of the invoice string. Only trust it for payment
	// verification when PaymentHashDecoded is set.
	PaymentHash        string
	PaymentHashDecoded bool
	Recipient          string
	Description        string
	CreatedAt          time.Time
	ExpiresAt          time.Time // display hint, independent of the invoice expiry
	Status             PaymentStatus
	SuccessAction      json.RawMessage
	// Comment is the payer comment as sent to the service, empty when the
	// service does not accept comments.
	Comment string
}

// PaymentURI returns the lightning: URI to hand to a QR encoder.
func (p PaymentDescriptor) PaymentURI() string {
	return "lightning:" + p.PaymentRequest
}

// Expired reports whether now is past the display validity window.
func (p PaymentDescriptor) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// BuildParams are the inputs to BuildDescriptor.
type BuildParams struct {
	AmountSats     uint64
	Invoice        *InvoiceResult
	Recipient      string
	Label          string // optional display name, e.g. the agent's name
	Comment        string // comment actually transmitted with the request
	ValidityWindow time.Duration
	Now            time.Time
}

// BuildDescriptor assembles a PaymentDescriptor. It has no network or
// validation side effects.
func BuildDescriptor(p BuildParams) PaymentDescriptor {
	window := p.ValidityWindow
	if window <= 0 {
		window = DefaultValidityWindow
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	hash, decoded := PaymentHash(p.Invoice.PaymentRequest)

	var successAction json.RawMessage
	if len(p.Invoice.SuccessAction) > 0 {
		successAction = append(json.RawMessage(nil), p.Invoice.SuccessAction...)
	}

	return PaymentDescriptor{
		AmountSats:         p.AmountSats,
		PaymentRequest:     p.Invoice.PaymentRequest,
		PaymentHash:        hash,
		PaymentHashDecoded: decoded,
		Recipient:          p.Recipient,
		Description:        describe(p.AmountSats, p.Label),
		CreatedAt:          now,
		ExpiresAt:          now.Add(window),
		Status:             StatusPending,
		SuccessAction:      successAction,
		Comment:            p.Comment,
	}
}

func describe(amountSats uint64, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultRecipientLabel
	}
	return fmt.Sprintf("Tip for %s: %d sats", label, amountSats)
}

// FormatSats formats an amount for display, e.g. "1,000 sats".
func FormatSats(sats uint64) string {
	if sats > math.MaxInt64 {
		return strconv.FormatUint(sats, 10) + " sats"
	}
	return humanize.Comma(int64(sats)) + " sats"
}

// PaymentHash returns the payment hash of a BOLT11 invoice in hex and true
// when the invoice decodes. Otherwise it returns a hex SHA-256 of the
// invoice string and false; that value is stable for a given invoice but is
// not a payment hash.
func PaymentHash(invoice string) (string, bool) {
	if params := netParamsFor(invoice); params != nil {
		inv, err := zpay32.Decode(invoice, params)
		if err == nil && inv.PaymentHash != nil {
			return lntypes.Hash(*inv.PaymentHash).String(), true
		}
	}

	sum := sha256.Sum256([]byte(invoice))
	return hex.EncodeToString(sum[:]), false
}

// netParamsFor picks chain params from the invoice's human readable prefix.
// Longer prefixes are matched first.
func netParamsFor(invoice string) *chaincfg.Params {
	lower := strings.ToLower(invoice)
	switch {
	case strings.HasPrefix(lower, "lnbcrt"):
		return &chaincfg.RegressionNetParams
	case strings.HasPrefix(lower, "lntbs"):
		return &chaincfg.SigNetParams
	case strings.HasPrefix(lower, "lntb"):
		return &chaincfg.TestNet3Params
	case strings.HasPrefix(lower, "lnsb"):
		return &chaincfg.SimNetParams
	case strings.HasPrefix(lower, "lnbc"):
		return &chaincfg.MainNetParams
	default:
		return nil
	}
}
