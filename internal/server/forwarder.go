package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportError marks a failure to reach the upstream endpoint or a
// connection that dropped mid-stream. Handlers map it to a gateway-failure
// response instead of letting it crash the request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Forwarder relays an inbound chat request to the fixed upstream URL.
type Forwarder struct {
	client      HTTPClient
	upstreamURL string
	logger      zerolog.Logger
}

// NewForwarder creates a Forwarder that POSTs to upstreamURL via client.
func NewForwarder(client HTTPClient, upstreamURL string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		client:      client,
		upstreamURL: upstreamURL,
		logger:      logger,
	}
}

// Forward issues a POST to the upstream URL carrying the inbound request's
// headers and body. All inbound headers are passed through verbatim,
// credentials included: this is a full passthrough, not a filtered proxy.
// The context comes from the inbound request, so a client disconnect aborts
// the in-flight upstream call. Connection failures return *TransportError.
func (f *Forwarder) Forward(ctx context.Context, header http.Header, body []byte) (*http.Response, error) {
	proxyReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy request: %w", err)
	}

	for key, values := range header {
		for _, value := range values {
			proxyReq.Header.Add(key, value)
		}
	}
	proxyReq.Header.Set("X-Request-Id", uuid.NewString())

	f.logger.Debug().
		Str("endpoint", f.upstreamURL).
		Str("request_id", proxyReq.Header.Get("X-Request-Id")).
		Int("body_bytes", len(body)).
		Msg("Forwarding request upstream")

	resp, err := f.client.Do(proxyReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}
