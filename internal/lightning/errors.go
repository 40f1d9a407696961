package lightning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidLightningAddress indicates the lightning address format is invalid.
var ErrInvalidLightningAddress = errors.New("invalid lightning address format")

// ErrLNURLMetadataFetch indicates failure to fetch LNURL-pay metadata.
var ErrLNURLMetadataFetch = errors.New("failed to fetch LNURL metadata")

// ErrInvalidAmount indicates a zero, negative or non-integer amount.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrInvoiceAmountOutOfRange indicates requested amount is outside min/max bounds.
var ErrInvoiceAmountOutOfRange = errors.New("amount outside LNURL pay range")

// ErrCommentTooLong indicates the comment exceeds what the service accepts.
var ErrCommentTooLong = errors.New("comment too long")

// ErrLNURLProtocol indicates the LNURL service answered with status ERROR
// or with a response that violates LUD-06.
var ErrLNURLProtocol = errors.New("LNURL service error")

// ErrLNURLInvoiceRequest indicates failure to request invoice from callback.
var ErrLNURLInvoiceRequest = errors.New("failed to request LNURL invoice")

// ErrInvoiceMissing indicates the callback succeeded without a pr field.
var ErrInvoiceMissing = errors.New("no payment request in response")

// ErrResolutionCancelled indicates the resolution was superseded or its
// context was cancelled before it completed.
var ErrResolutionCancelled = errors.New("resolution cancelled")

// Kind is the closed set of failure classes a resolution can end in.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddressFormat
	KindMetadataFetch
	KindInvalidAmount
	KindAmountOutOfRange
	KindCommentTooLong
	KindProtocol
	KindInvoiceFetch
	KindInvoiceMissing
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindAddressFormat:    "address_format",
	KindMetadataFetch:    "metadata_fetch",
	KindInvalidAmount:    "invalid_amount",
	KindAmountOutOfRange: "amount_out_of_range",
	KindCommentTooLong:   "comment_too_long",
	KindProtocol:         "protocol",
	KindInvoiceFetch:     "invoice_fetch",
	KindInvoiceMissing:   "invoice_missing",
	KindCancelled:        "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) sentinel() error {
	switch k {
	case KindAddressFormat:
		return ErrInvalidLightningAddress
	case KindMetadataFetch:
		return ErrLNURLMetadataFetch
	case KindInvalidAmount:
		return ErrInvalidAmount
	case KindAmountOutOfRange:
		return ErrInvoiceAmountOutOfRange
	case KindCommentTooLong:
		return ErrCommentTooLong
	case KindProtocol:
		return ErrLNURLProtocol
	case KindInvoiceFetch:
		return ErrLNURLInvoiceRequest
	case KindInvoiceMissing:
		return ErrInvoiceMissing
	case KindCancelled:
		return ErrResolutionCancelled
	default:
		return nil
	}
}

// Error is the single error type returned by every resolution stage.
// Only the fields relevant to Kind are populated.
type Error struct {
	Kind  Kind
	Stage string // stage that failed, see fsm.Stage*

	// HTTPStatus is the response status for MetadataFetch and
	// InvoiceFetch. Zero means no response was received.
	HTTPStatus int

	// Reason is the service supplied reason for Protocol errors.
	Reason string

	// MinSats and MaxSats are the advertised bounds for AmountOutOfRange.
	MinSats uint64
	MaxSats uint64

	// MaxLength is the accepted comment length for CommentTooLong.
	MaxLength int

	// Err is the underlying cause, if any.
	Err error
}

// Status returns the HTTP status as text, or "network" when the request
// never produced a response.
func (e *Error) Status() string {
	if e.HTTPStatus == 0 {
		return "network"
	}
	return strconv.Itoa(e.HTTPStatus)
}

func (e *Error) Error() string {
	sentinel := e.Kind.sentinel()
	if sentinel == nil {
		sentinel = errors.New("lightning error")
	}

	var msg string
	switch e.Kind {
	case KindMetadataFetch, KindInvoiceFetch:
		if e.HTTPStatus == 0 {
			msg = fmt.Sprintf("%v: network", sentinel)
		} else {
			msg = fmt.Sprintf("%v: HTTP %d", sentinel, e.HTTPStatus)
		}
	case KindAmountOutOfRange:
		msg = fmt.Sprintf("%v: must be between %d and %d sats",
			sentinel, e.MinSats, e.MaxSats)
	case KindCommentTooLong:
		msg = fmt.Sprintf("%v: at most %d characters allowed",
			sentinel, e.MaxLength)
	case KindProtocol:
		msg = fmt.Sprintf("%v: %s", sentinel, e.Reason)
	default:
		msg = sentinel.Error()
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request may succeed.
// Transport failures are retryable; input and protocol failures are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindMetadataFetch, KindInvoiceFetch:
		return true
	default:
		return false
	}
}

// Classify maps any error returned by this package onto its Kind. A bare
// context.Canceled is reported as KindCancelled.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	for k := KindAddressFormat; k <= KindCancelled; k++ {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// withStage stamps stage onto err when it is an *Error without one.
func withStage(err error, stage string) error {
	var lerr *Error
	if errors.As(err, &lerr) && lerr.Stage == "" {
		lerr.Stage = stage
	}
	return err
}
