package cli

import (
	"errors"
	"fmt"

	"github.com/buildtall-systems/zapdesk/internal/lightning"
)

// userMessage turns a resolution failure into the text shown to the payer.
func userMessage(err error) string {
	var lerr *lightning.Error
	if !errors.As(err, &lerr) {
		return err.Error()
	}

	switch lerr.Kind {
	case lightning.KindAddressFormat:
		return "Invalid Lightning address format"
	case lightning.KindInvalidAmount:
		return "Invalid amount"
	case lightning.KindAmountOutOfRange:
		return fmt.Sprintf("Amount must be between %s and %s",
			lightning.FormatSats(lerr.MinSats), lightning.FormatSats(lerr.MaxSats))
	case lightning.KindCommentTooLong:
		return fmt.Sprintf("Comment is too long (at most %d characters)", lerr.MaxLength)
	case lightning.KindMetadataFetch:
		return fmt.Sprintf("Failed to fetch Lightning address info: %s", lerr.Status())
	case lightning.KindInvoiceFetch:
		return fmt.Sprintf("Failed to fetch invoice: %s", lerr.Status())
	case lightning.KindProtocol:
		return lerr.Reason
	case lightning.KindInvoiceMissing:
		return "No payment request in response"
	case lightning.KindCancelled:
		return "Cancelled"
	default:
		return lerr.Error()
	}
}

// resolutionError logs err in full and returns the payer-facing version.
func (e *env) resolutionError(err error) error {
	e.log.WithError(err).WithField("kind", lightning.Classify(err).String()).Debug("resolution error")

	msg := userMessage(err)
	var lerr *lightning.Error
	if errors.As(err, &lerr) && lerr.Retryable() {
		msg += " (try again)"
	}
	return errors.New(msg)
}
