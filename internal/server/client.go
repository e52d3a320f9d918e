package server

import (
	"net/http"
	"time"
)

// NewHTTPClient creates the HTTP client used for upstream calls. The timeout
// bounds the whole exchange including the streamed body; expiry surfaces as
// a TransportError rather than a truncated success.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
	}
}
