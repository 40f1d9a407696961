package lightning

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

const (
	tagPayRequest = "payRequest"
	statusError   = "ERROR"

	defaultMetadataReason = "LNURL service error"
)

// Millisats is an LNURL amount in millisatoshis. Services disagree on
// whether amounts are JSON numbers or strings, so both are accepted.
type Millisats uint64

// Sats converts to whole satoshis, rounding down.
func (m Millisats) Sats() uint64 {
	return uint64(m) / 1000
}

func (m *Millisats) UnmarshalJSON(b []byte) error {
	n, err := parseJSONUint(b)
	if err != nil {
		return fmt.Errorf("millisats: %w", err)
	}
	*m = Millisats(n)
	return nil
}

// lenientUint is an unsigned integer that may arrive quoted.
type lenientUint uint64

func (u *lenientUint) UnmarshalJSON(b []byte) error {
	n, err := parseJSONUint(b)
	if err != nil {
		return err
	}
	*u = lenientUint(n)
	return nil
}

func parseJSONUint(b []byte) (uint64, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return 0, nil
	}
	// Some services emit integral floats such as 1000.0.
	if strings.HasSuffix(s, ".0") {
		s = strings.TrimSuffix(s, ".0")
	}
	return strconv.ParseUint(s, 10, 64)
}

// payResponse is the LUD-06/LUD-16 discovery body, error variant included.
type payResponse struct {
	Callback       string          `json:"callback"`
	MinSendable    Millisats       `json:"minSendable"`
	MaxSendable    Millisats       `json:"maxSendable"`
	CommentAllowed lenientUint     `json:"commentAllowed"`
	Metadata       json.RawMessage `json:"metadata"`
	Tag            string          `json:"tag"`
	AllowsNostr    bool            `json:"allowsNostr"`
	NostrPubkey    string          `json:"nostrPubkey"`

	Status string `json:"status"`
	Reason string `json:"reason"`
}

// PayServiceDescriptor describes a recipient's LNURL-pay service.
// MinSendable never exceeds MaxSendable.
type PayServiceDescriptor struct {
	Address        LightningAddress
	LNURL          string // discovery URL the descriptor was fetched from
	Callback       string
	MinSendable    Millisats
	MaxSendable    Millisats
	CommentAllowed int // max comment length, 0 = not allowed
	RawMetadata    string
	AllowsNostr    bool
	NostrPubkey    string // hex, only set when valid
}

// MinSats is the smallest whole-sat amount the service accepts.
func (d *PayServiceDescriptor) MinSats() uint64 {
	sats := uint64(d.MinSendable) / 1000
	if uint64(d.MinSendable)%1000 != 0 {
		sats++
	}
	return sats
}

// MaxSats is the largest whole-sat amount the service accepts.
func (d *PayServiceDescriptor) MaxSats() uint64 {
	return d.MaxSendable.Sats()
}

// Description returns the text/plain entry of the LUD-06 metadata, or ""
// if the metadata does not carry one.
func (d *PayServiceDescriptor) Description() string {
	var entries [][]any
	if err := json.Unmarshal([]byte(d.RawMetadata), &entries); err != nil {
		return ""
	}
	for _, entry := range entries {
		if len(entry) < 2 {
			continue
		}
		mime, _ := entry[0].(string)
		text, _ := entry[1].(string)
		if mime == "text/plain" {
			return text
		}
	}
	return ""
}

// NostrNpub returns the service's zap-signing key as an npub, or "" when the
// service does not advertise one.
func (d *PayServiceDescriptor) NostrNpub() string {
	if d.NostrPubkey == "" {
		return ""
	}
	npub, err := nip19.EncodePublicKey(d.NostrPubkey)
	if err != nil {
		return ""
	}
	return npub
}

// Resolve performs the LUD-16 discovery request for addr.
func (c *Client) Resolve(ctx context.Context, addr LightningAddress) (*PayServiceDescriptor, error) {
	url := addr.WellKnownURL(c.scheme)

	var body payResponse
	status, err := c.getJSON(ctx, url, &body)
	if err != nil {
		return nil, fetchFailure(ctx, KindMetadataFetch, stageDiscover, status, err)
	}

	if strings.EqualFold(body.Status, statusError) {
		reason := body.Reason
		if reason == "" {
			reason = defaultMetadataReason
		}
		return nil, &Error{Kind: KindProtocol, Stage: stageDiscover, Reason: reason}
	}

	if body.Callback == "" {
		return nil, &Error{Kind: KindProtocol, Stage: stageDiscover, Reason: "missing callback URL"}
	}
	if body.Tag != "" && body.Tag != tagPayRequest {
		return nil, &Error{
			Kind:   KindProtocol,
			Stage:  stageDiscover,
			Reason: fmt.Sprintf("unexpected tag %q", body.Tag),
		}
	}
	if body.MinSendable > body.MaxSendable {
		return nil, &Error{
			Kind:  KindProtocol,
			Stage: stageDiscover,
			Reason: fmt.Sprintf("minSendable %d exceeds maxSendable %d",
				body.MinSendable, body.MaxSendable),
		}
	}

	d := &PayServiceDescriptor{
		Address:        addr,
		LNURL:          url,
		Callback:       body.Callback,
		MinSendable:    body.MinSendable,
		MaxSendable:    body.MaxSendable,
		CommentAllowed: commentLimit(body.CommentAllowed),
		RawMetadata:    rawMetadata(body.Metadata),
		AllowsNostr:    body.AllowsNostr,
	}
	if isHexPubkey(body.NostrPubkey) {
		d.NostrPubkey = strings.ToLower(body.NostrPubkey)
	}

	return d, nil
}

// commentLimit converts commentAllowed to an int, saturating at math.MaxInt.
func commentLimit(n lenientUint) int {
	if uint64(n) > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// rawMetadata returns the metadata as the string the service signed. LUD-06
// sends it as a JSON string; anything else is kept verbatim.
func rawMetadata(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// isHexPubkey reports whether s is a 32-byte x-only key in hex.
func isHexPubkey(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
