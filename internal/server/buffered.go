package server

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/batchgate/batchgate/internal/metrics"
	"github.com/batchgate/batchgate/internal/sse"
)

var doneSentinel = []byte("[DONE]")

// aggregation is the request-scoped accumulator for one upstream stream. It
// is owned by a single request and discarded once the response is built.
type aggregation struct {
	content      strings.Builder
	model        string
	role         string
	finishReason string
	parsed       int
	dropped      int
}

// aggregateChatCompletion drains the upstream SSE stream and concatenates
// every delta content fragment in arrival order. Records that fail to parse
// or lack the expected shape are skipped, counted and logged, never fatal.
// A [DONE] sentinel is treated as the terminal signal: aggregation stops
// without reading further. A mid-stream read failure returns a
// *TransportError and the partial aggregation is discarded by the caller.
func aggregateChatCompletion(body io.Reader, logger zerolog.Logger, rec *metrics.Recorder) (*aggregation, error) {
	decoder := sse.NewDecoder(body)
	agg := &aggregation{}

	for {
		payload, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		if bytes.Equal(bytes.TrimSpace(payload), doneSentinel) {
			break
		}
		agg.consume(payload, logger, rec)
	}

	logger.Debug().
		Int("records_parsed", agg.parsed).
		Int("records_dropped", agg.dropped).
		Int("content_bytes", agg.content.Len()).
		Msg("Upstream stream aggregated")

	return agg, nil
}

// consume folds a single data payload into the accumulator.
func (a *aggregation) consume(payload []byte, logger zerolog.Logger, rec *metrics.Recorder) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return
	}

	var chunk streamingChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		a.dropped++
		rec.RecordDropped()
		logger.Debug().
			Err(err).
			Int("payload_bytes", len(trimmed)).
			Msg("Skipping unparseable SSE record")
		return
	}

	if chunk.Model != "" && a.model == "" {
		a.model = chunk.Model
	}

	if len(chunk.Choices) == 0 {
		// Valid JSON without a recognizable delta shape. Not an error,
		// but not aggregation material either.
		a.dropped++
		rec.RecordDropped()
		return
	}

	a.parsed++
	rec.RecordParsed()

	choice := chunk.Choices[0]
	if choice.Delta.Role != "" && a.role == "" {
		a.role = choice.Delta.Role
	}
	if choice.Delta.Content != "" {
		a.content.WriteString(choice.Delta.Content)
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		a.finishReason = *choice.FinishReason
	}
}

// buildChatCompletionResponse assembles the final non-streaming envelope.
// Model resolution order: upstream response header, model observed in the
// stream, then the configured default literal. Usage counters are fixed at
// zero; token accounting is explicitly out of scope.
func buildChatCompletionResponse(agg *aggregation, headerModel, defaultModel string) *ChatCompletionResponse {
	model := headerModel
	if model == "" {
		model = agg.model
	}
	if model == "" {
		model = defaultModel
	}

	role := agg.role
	if role == "" {
		role = "assistant"
	}
	finishReason := agg.finishReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return &ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{
			{
				Index: 0,
				Message: ChatMessage{
					Role:    role,
					Content: agg.content.String(),
				},
				FinishReason: finishReason,
			},
		},
		Usage: Usage{},
	}
}

func newCompletionID() string {
	id, err := gonanoid.New()
	if err != nil {
		// crypto/rand failure; fall back to a timestamp-derived id so the
		// response still carries an opaque token.
		return "chatcmpl-" + strings.ReplaceAll(time.Now().Format("20060102150405.000000000"), ".", "")
	}
	return "chatcmpl-" + id
}
