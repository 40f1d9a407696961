package lightning

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

const defaultInvoiceReason = "Failed to generate invoice"

// invoiceResponse is the LUD-06 callback body, error variant included.
type invoiceResponse struct {
	PR            string          `json:"pr"`
	SuccessAction json.RawMessage `json:"successAction"`
	Routes        json.RawMessage `json:"routes"` // routing hints (unused)

	Status string `json:"status"`
	Reason string `json:"reason"`
}

// InvoiceResult is the invoice returned by the callback. PaymentRequest is
// carried opaquely.
type InvoiceResult struct {
	PaymentRequest string
	SuccessAction  json.RawMessage // nil when absent
}

// CallbackURL builds the invoice request URL for amountSats. An existing
// query string on the callback is preserved. The comment is sent only when
// it is non-empty and the service accepts comments; it is never truncated
// here, length is checked by ValidateComment beforehand. amountSats*1000
// must fit in a uint64; RequestInvoice rejects amounts that do not.
func CallbackURL(d *PayServiceDescriptor, amountSats uint64, comment string) string {
	// Callback URL may already have query params, so we need to handle that
	separator := "?"
	if strings.Contains(d.Callback, "?") {
		separator = "&"
	}

	msat, _ := toMillisats(amountSats)

	var b strings.Builder
	b.WriteString(d.Callback)
	b.WriteString(separator)
	b.WriteString("amount=")
	b.WriteString(strconv.FormatUint(msat, 10))

	if c := sentComment(comment, d); c != "" {
		b.WriteString("&comment=")
		b.WriteString(escapeComment(c))
	}

	return b.String()
}

// sentComment returns the comment CallbackURL will transmit to d.
func sentComment(comment string, d *PayServiceDescriptor) string {
	if d.CommentAllowed > 0 {
		return comment
	}
	return ""
}

// escapeComment percent-encodes a comment with spaces as %20.
func escapeComment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// RequestInvoice requests a bolt11 invoice for amountSats from the service
// described by d. It makes a single attempt.
func (c *Client) RequestInvoice(ctx context.Context, d *PayServiceDescriptor, amountSats uint64, comment string) (*InvoiceResult, error) {
	if _, ok := toMillisats(amountSats); !ok || amountSats == 0 {
		return nil, &Error{Kind: KindInvalidAmount, Stage: stageRequest}
	}
	callbackURL := CallbackURL(d, amountSats, comment)

	var body invoiceResponse
	status, err := c.getJSON(ctx, callbackURL, &body)
	if err != nil {
		return nil, fetchFailure(ctx, KindInvoiceFetch, stageRequest, status, err)
	}

	if strings.EqualFold(body.Status, statusError) {
		reason := body.Reason
		if reason == "" {
			reason = defaultInvoiceReason
		}
		return nil, &Error{Kind: KindProtocol, Stage: stageRequest, Reason: reason}
	}

	if body.PR == "" {
		return nil, &Error{Kind: KindInvoiceMissing, Stage: stageRequest}
	}

	res := &InvoiceResult{PaymentRequest: body.PR}
	if len(body.SuccessAction) > 0 && string(body.SuccessAction) != "null" {
		res.SuccessAction = body.SuccessAction
	}

	return res, nil
}
