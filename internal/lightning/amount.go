package lightning

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// AmountRequest is what a caller asks to pay.
type AmountRequest struct {
	AmountSats uint64
	Comment    string // optional
}

// ParseAmount parses a caller supplied amount in satoshis. Empty, zero,
// negative and non-integer input is rejected with KindInvalidAmount.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, &Error{Kind: KindInvalidAmount, Stage: stageValidate}
	}
	return n, nil
}

// toMillisats converts sats to msat, reporting false on overflow.
func toMillisats(amountSats uint64) (uint64, bool) {
	if amountSats > math.MaxUint64/1000 {
		return 0, false
	}
	return amountSats * 1000, true
}

// ValidateAmount checks amountSats against the service's sendable range,
// inclusive on both ends. The error carries the bounds in sats.
func ValidateAmount(amountSats uint64, d *PayServiceDescriptor) error {
	msat, ok := toMillisats(amountSats)
	if !ok || msat < uint64(d.MinSendable) || msat > uint64(d.MaxSendable) {
		return &Error{
			Kind:    KindAmountOutOfRange,
			Stage:   stageValidate,
			MinSats: d.MinSats(),
			MaxSats: d.MaxSats(),
		}
	}
	return nil
}

// ValidateComment checks comment against the service's commentAllowed.
// Length is counted in characters. A service that does not accept comments
// never fails here; the comment is simply not sent.
func ValidateComment(comment string, d *PayServiceDescriptor) error {
	if comment == "" || d.CommentAllowed <= 0 {
		return nil
	}
	if utf8.RuneCountInString(comment) > d.CommentAllowed {
		return &Error{
			Kind:      KindCommentTooLong,
			Stage:     stageValidate,
			MaxLength: d.CommentAllowed,
		}
	}
	return nil
}
