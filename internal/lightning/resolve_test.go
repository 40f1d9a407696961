package lightning

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/buildtall-systems/zapdesk/internal/fsm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestResolveInvoice_Success(t *testing.T) {
	svc := newLNURLService(t)
	svc.invoice = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"pr":            bolt11Vector,
			"successAction": map[string]any{"tag": "message", "message": "Thanks!"},
		})
	}

	pd, err := svc.client(WithValidityWindow(2*time.Hour)).ResolveInvoice(
		context.Background(), svc.address(), 1000,
		WithLabel("Alice"), WithComment("Tip for support request #42"),
	)
	require.NoError(t, err)

	require.Equal(t, uint64(1000), pd.AmountSats)
	require.Equal(t, bolt11Vector, pd.PaymentRequest)
	require.Equal(t, bolt11VectorHash, pd.PaymentHash)
	require.Equal(t, svc.address(), pd.Recipient)
	require.Equal(t, "Tip for Alice: 1000 sats", pd.Description)
	require.Equal(t, testTime, pd.CreatedAt)
	require.Equal(t, testTime.Add(2*time.Hour), pd.ExpiresAt)
	require.Equal(t, StatusPending, pd.Status)
	require.NotNil(t, pd.SuccessAction)
	require.Equal(t, "Tip for support request #42", pd.Comment)

	require.Equal(t, int32(1), svc.metadataHits.Load())
	require.Equal(t, int32(1), svc.invoiceHits.Load())
}

func TestResolveInvoice_ProtocolErrorStopsBeforeInvoice(t *testing.T) {
	svc := newLNURLService(t)
	svc.metadata = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ERROR", "reason": "no such user"})
	}

	_, err := svc.client().ResolveInvoice(context.Background(), svc.address(), 50)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindProtocol, lerr.Kind)
	require.Equal(t, "no such user", lerr.Reason)
	require.Equal(t, fsm.StageFetchMetadata, lerr.Stage)
	require.Equal(t, int32(0), svc.invoiceHits.Load())
}

func TestResolveInvoice_OutOfRangeStopsBeforeInvoice(t *testing.T) {
	svc := newLNURLService(t)
	svc.metadata = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"callback":    svc.server.URL + "/cb",
			"minSendable": 1000,
			"maxSendable": 100000,
		})
	}

	_, err := svc.client().ResolveInvoice(context.Background(), svc.address(), 101)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindAmountOutOfRange, lerr.Kind)
	require.Equal(t, uint64(1), lerr.MinSats)
	require.Equal(t, uint64(100), lerr.MaxSats)
	require.Equal(t, fsm.StageValidateAmount, lerr.Stage)
	require.Equal(t, int32(0), svc.invoiceHits.Load())
}

func TestResolveInvoice_InputErrorsMakeNoRequests(t *testing.T) {
	svc := newLNURLService(t)
	client := svc.client()

	tests := []struct {
		name    string
		address string
		amount  uint64
		want    error
		stage   string
	}{
		{"malformed address", "a@b@c", 10, ErrInvalidLightningAddress, fsm.StageParseAddress},
		{"missing domain", "alice@", 10, ErrInvalidLightningAddress, fsm.StageParseAddress},
		{"zero amount", svc.address(), 0, ErrInvalidAmount, fsm.StageValidateAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ResolveInvoice(context.Background(), tt.address, tt.amount)
			require.True(t, errors.Is(err, tt.want), "got %v", err)

			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			require.Equal(t, tt.stage, lerr.Stage)
		})
	}

	require.Equal(t, int32(0), svc.metadataHits.Load())
}

func TestResolveInvoice_CommentTooLong(t *testing.T) {
	svc := newLNURLService(t)

	long := make([]byte, 33)
	for i := range long {
		long[i] = 'x'
	}

	_, err := svc.client().ResolveInvoice(context.Background(), svc.address(), 10,
		WithComment(string(long)))

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindCommentTooLong, lerr.Kind)
	require.Equal(t, 32, lerr.MaxLength)
	require.Equal(t, int32(0), svc.invoiceHits.Load())
}

func TestResolveInvoice_CommentDroppedWhenNotAllowed(t *testing.T) {
	svc := newLNURLService(t)
	svc.metadata = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"callback":    svc.server.URL + "/cb",
			"minSendable": 1000,
			"maxSendable": 100000,
		})
	}
	var query url.Values
	svc.invoice = func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, map[string]any{"pr": "lnbc10n1nocomment"})
	}

	pd, err := svc.client().ResolveInvoice(context.Background(), svc.address(), 10,
		WithComment("thanks"))
	require.NoError(t, err)
	require.Empty(t, pd.Comment)
	require.False(t, query.Has("comment"))
}

func TestResolveInvoice_InvoiceErrors(t *testing.T) {
	svc := newLNURLService(t)
	svc.invoice = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"routes": []any{}})
	}

	_, err := svc.client().ResolveInvoice(context.Background(), svc.address(), 10)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindInvoiceMissing, lerr.Kind)
	require.Equal(t, fsm.StageRequestInvoice, lerr.Stage)
}

func TestResolveInvoice_Idempotent(t *testing.T) {
	svc := newLNURLService(t)
	client := svc.client()

	first, err := client.ResolveInvoice(context.Background(), svc.address(), 21, WithLabel("Bob"))
	require.NoError(t, err)
	second, err := client.ResolveInvoice(context.Background(), svc.address(), 21, WithLabel("Bob"))
	require.NoError(t, err)

	a, b := *first, *second
	a.PaymentHash, b.PaymentHash = "", ""
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.ExpiresAt, b.ExpiresAt = time.Time{}, time.Time{}
	require.Equal(t, a, b)
}

func TestResolveInvoice_Timeout(t *testing.T) {
	svc := newLNURLService(t)
	release := make(chan struct{})
	defer close(release)

	svc.metadata = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}

	_, err := svc.client(WithTimeout(50*time.Millisecond)).ResolveInvoice(
		context.Background(), svc.address(), 10)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindMetadataFetch, lerr.Kind)
	require.Equal(t, "network", lerr.Status())
	require.True(t, lerr.Retryable())
}

func TestResolveInvoice_CancelledContext(t *testing.T) {
	svc := newLNURLService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.client().ResolveInvoice(ctx, svc.address(), 10)
	require.True(t, errors.Is(err, ErrResolutionCancelled))
	require.Equal(t, KindCancelled, Classify(err))
	require.Equal(t, int32(0), svc.metadataHits.Load())
}

func TestResolveInvoice_LogsResolutionID(t *testing.T) {
	svc := newLNURLService(t)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	_, err := svc.client(WithLogger(logger)).ResolveInvoice(context.Background(), svc.address(), 10)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `"resolution_id"`)
	require.Contains(t, out, `"stage":"`+fsm.StageRequestInvoice+`"`)
	require.Contains(t, out, "invoice resolved")
}

func TestResolveCallbackOnly(t *testing.T) {
	svc := newLNURLService(t)

	desc, err := svc.client().ResolveCallbackOnly(context.Background(), svc.address())
	require.NoError(t, err)
	require.Equal(t, svc.server.URL+"/cb?id=1", desc.Callback)
	require.Equal(t, int32(0), svc.invoiceHits.Load())

	lnurl, err := EncodeLNURL(desc.LNURL)
	require.NoError(t, err)
	decoded, err := DecodeLNURL(lnurl)
	require.NoError(t, err)
	require.Equal(t, desc.LNURL, decoded)
}

func TestResolveCallbackOnly_Errors(t *testing.T) {
	svc := newLNURLService(t)
	svc.metadata = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	client := svc.client()

	_, err := client.ResolveCallbackOnly(context.Background(), "nouser")
	require.Equal(t, KindAddressFormat, Classify(err))

	_, err = client.ResolveCallbackOnly(context.Background(), svc.address())
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindMetadataFetch, lerr.Kind)
	require.Equal(t, http.StatusServiceUnavailable, lerr.HTTPStatus)
	require.Equal(t, fsm.StageFetchMetadata, lerr.Stage)
}
