package lightning

import (
	"context"
	"errors"

	"github.com/buildtall-systems/zapdesk/internal/fsm"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	stageParse    = fsm.StageParseAddress
	stageDiscover = fsm.StageFetchMetadata
	stageValidate = fsm.StageValidateAmount
	stageRequest  = fsm.StageRequestInvoice
)

type resolveOptions struct {
	comment string
	label   string
}

// ResolveOption configures a single ResolveInvoice call.
type ResolveOption func(*resolveOptions)

// WithComment attaches a payer comment (LUD-12) to the invoice request.
func WithComment(comment string) ResolveOption {
	return func(o *resolveOptions) { o.comment = comment }
}

// WithLabel sets the recipient display name used in the description.
func WithLabel(label string) ResolveOption {
	return func(o *resolveOptions) { o.label = label }
}

// resolution holds the state of one call. Nothing in it is shared.
type resolution struct {
	id     string
	log    logrus.FieldLogger
	stages *fsm.Resolution
}

func (c *Client) newResolution(address string) *resolution {
	id := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{
		"resolution_id": id,
		"address":       address,
	})
	return &resolution{
		id:  id,
		log: log,
		stages: fsm.NewResolution(func(event, from, to string) {
			log.WithField("stage", to).Debugf("%s: %s -> %s", event, from, to)
		}),
	}
}

func (r *resolution) advance(ctx context.Context, event string) {
	if err := r.stages.Event(ctx, event); err != nil {
		// Events are fired in a fixed order; failing here is a bug.
		r.log.WithError(err).Errorf("stage transition %s rejected", event)
	}
}

// fail records err against the current stage and returns it classified.
func (r *resolution) fail(ctx context.Context, err error) error {
	var lerr *Error
	if !errors.As(err, &lerr) {
		lerr = &Error{Kind: Classify(err), Err: err}
		err = lerr
	}

	var stage string
	if lerr.Kind == KindCancelled {
		stage = r.stages.Cancel(ctx)
	} else {
		stage = r.stages.Fail(ctx)
	}
	withStage(lerr, stage)

	fields := logrus.Fields{
		"stage": lerr.Stage,
		"kind":  lerr.Kind.String(),
	}
	switch lerr.Kind {
	case KindMetadataFetch, KindInvoiceFetch:
		fields["status"] = lerr.Status()
	case KindProtocol:
		fields["reason"] = lerr.Reason
	case KindAmountOutOfRange:
		fields["min_sats"] = lerr.MinSats
		fields["max_sats"] = lerr.MaxSats
	}

	entry := r.log.WithFields(fields)
	if lerr.Kind == KindCancelled {
		entry.Debug("resolution cancelled")
	} else {
		entry.WithError(lerr.Err).Warn("resolution failed")
	}

	return lerr
}

// cancelled returns a Cancelled error if ctx was cancelled by the caller.
// Deadline expiry is left to the network stages to report.
func cancelled(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Kind: KindCancelled, Err: ctx.Err()}
	}
	return nil
}

// ResolveInvoice resolves address to a payable invoice for amountSats and
// returns the descriptor to display. It makes at most two requests: LUD-16
// discovery, then the LUD-06 callback. Every failure is an *Error.
func (c *Client) ResolveInvoice(ctx context.Context, address string, amountSats uint64, opts ...ResolveOption) (*PaymentDescriptor, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	req := AmountRequest{AmountSats: amountSats, Comment: o.comment}

	r := c.newResolution(address)
	r.log.WithField("amount_sats", req.AmountSats).Debug("resolving invoice")

	r.advance(ctx, fsm.EventParse)
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	// Checked before any network call.
	if req.AmountSats == 0 {
		return nil, r.fail(ctx, &Error{Kind: KindInvalidAmount, Stage: stageValidate})
	}

	r.advance(ctx, fsm.EventDiscover)
	if err := cancelled(ctx); err != nil {
		return nil, r.fail(ctx, err)
	}
	desc, err := c.Resolve(ctx, addr)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.log.WithFields(logrus.Fields{
		"min_sendable":    desc.MinSendable,
		"max_sendable":    desc.MaxSendable,
		"comment_allowed": desc.CommentAllowed,
	}).Debug("metadata received")

	r.advance(ctx, fsm.EventValidate)
	if err := ValidateAmount(req.AmountSats, desc); err != nil {
		return nil, r.fail(ctx, err)
	}
	if err := ValidateComment(req.Comment, desc); err != nil {
		return nil, r.fail(ctx, err)
	}

	r.advance(ctx, fsm.EventRequest)
	if err := cancelled(ctx); err != nil {
		return nil, r.fail(ctx, err)
	}
	invoice, err := c.RequestInvoice(ctx, desc, req.AmountSats, req.Comment)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	r.advance(ctx, fsm.EventBuild)
	pd := BuildDescriptor(BuildParams{
		AmountSats:     req.AmountSats,
		Invoice:        invoice,
		Recipient:      addr.String(),
		Label:          o.label,
		Comment:        sentComment(req.Comment, desc),
		ValidityWindow: c.validityWindow,
		Now:            c.clock.Now(),
	})
	r.advance(ctx, fsm.EventComplete)

	r.log.WithFields(logrus.Fields{
		"amount_sats":  pd.AmountSats,
		"payment_hash": pd.PaymentHash,
		"expires_at":   pd.ExpiresAt,
	}).Info("invoice resolved")

	return &pd, nil
}

// ResolveCallbackOnly performs discovery only, for callers that need the
// LNURL reference before an amount is known.
func (c *Client) ResolveCallbackOnly(ctx context.Context, address string) (*PayServiceDescriptor, error) {
	r := c.newResolution(address)
	r.log.Debug("resolving callback")

	r.advance(ctx, fsm.EventParse)
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	r.advance(ctx, fsm.EventDiscover)
	if err := cancelled(ctx); err != nil {
		return nil, r.fail(ctx, err)
	}
	desc, err := c.Resolve(ctx, addr)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, fsm.EventComplete)

	r.log.WithField("callback", desc.Callback).Info("callback resolved")
	return desc, nil
}

// ResolveInSlot runs ResolveInvoice under slot and hands the outcome to
// apply only if no newer resolution was begun on the slot meanwhile. It
// reports whether apply was called; a superseded result is discarded.
func (c *Client) ResolveInSlot(ctx context.Context, slot *Slot, address string, amountSats uint64, apply func(*PaymentDescriptor, error), opts ...ResolveOption) bool {
	ctx, token := slot.Begin(ctx)
	defer token.Release()

	pd, err := c.ResolveInvoice(ctx, address, amountSats, opts...)

	applied := token.Commit(func() { apply(pd, err) })
	if !applied {
		c.log.WithFields(logrus.Fields{
			"address":     address,
			"amount_sats": amountSats,
		}).Debug("discarding superseded resolution")
	}
	return applied
}
