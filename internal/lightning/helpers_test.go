package lightning

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// bolt11Vector is the BOLT11 "donation of any amount" example.
const (
	bolt11Vector = "lnbc1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdpl2pkx2ctnv5sxxmmwwd5kgetjypeh2ursdae8g6twvus8g6rfwvs8qun0dfjkxaq8rkx3yf5tcsyz3d73gafnh3cax9rn449d9p5uxz9ezhhypd0elx87sjle52x86fux2ypatgddc6k63n7erqz25le42c4u4ecky03ylcqca784w"
	bolt11VectorHash = "0001020304050607080900010203040506070809000102030405060708090102"
)

var testTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// lnurlService is a fake LNURL-pay service behind a TLS test server.
type lnurlService struct {
	server *httptest.Server

	// metadata and invoice write the discovery and callback responses.
	metadata func(w http.ResponseWriter, r *http.Request)
	invoice  func(w http.ResponseWriter, r *http.Request)

	metadataHits atomic.Int32
	invoiceHits  atomic.Int32
}

func newLNURLService(t *testing.T) *lnurlService {
	t.Helper()

	s := &lnurlService{}
	s.metadata = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"callback":       s.server.URL + "/cb?id=1",
			"minSendable":    1000,
			"maxSendable":    100_000_000,
			"commentAllowed": 32,
			"metadata":       `[["text/plain","Tips for alice"]]`,
			"tag":            "payRequest",
		})
	}
	s.invoice = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"pr":     "lnbc" + r.URL.Query().Get("amount") + "n1fakeinvoice",
			"routes": []any{},
		})
	}

	s.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/.well-known/lnurlp/alice":
			s.metadataHits.Add(1)
			s.metadata(w, r)
		case r.URL.Path == "/cb":
			s.invoiceHits.Add(1)
			s.invoice(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.server.Close)

	return s
}

// address returns the lightning address served by s.
func (s *lnurlService) address() string {
	return "alice@" + s.domain()
}

func (s *lnurlService) domain() string {
	return strings.TrimPrefix(s.server.URL, "https://")
}

// client returns a Client that trusts s's certificate.
func (s *lnurlService) client(opts ...Option) *Client {
	opts = append([]Option{WithClock(clock.NewTestClock(testTime))}, opts...)
	return NewClientWithHTTP(s.server.Client(), opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
