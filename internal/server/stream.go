package server

import (
	"bytes"
	"io"
	"net/http"

	"github.com/batchgate/batchgate/internal/sse"
)

// sseFlushWriter wraps a ResponseWriter to flush after each write.
type sseFlushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw sseFlushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.f.Flush()
	}
	return n, err
}

// passThroughSSEStream re-emits upstream SSE data events to the downstream
// writer with normalized framing and no transformation. The decoder's
// carry-over buffering applies here too, so records split across reads are
// forwarded whole. A terminal [DONE] is always emitted, even when the
// upstream stream ended without one.
func passThroughSSEStream(body io.Reader, w io.Writer) error {
	decoder := sse.NewDecoder(body)
	doneSeen := false

	for {
		payload, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &TransportError{Err: err}
		}

		trimmed := bytes.TrimSpace(payload)
		if len(trimmed) == 0 {
			continue
		}
		if bytes.Equal(trimmed, doneSentinel) {
			doneSeen = true
			if _, err := w.Write([]byte("data: [DONE]\n\n")); err != nil {
				return err
			}
			break
		}

		if _, err := w.Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
	}

	if !doneSeen {
		if _, err := w.Write([]byte("data: [DONE]\n\n")); err != nil {
			return err
		}
	}
	return nil
}
