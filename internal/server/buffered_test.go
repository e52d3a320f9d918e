package server

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchgate/batchgate/internal/metrics"
)

// segmentedReader yields its input in a fixed segmentation, one segment per
// Read, to exercise records that straddle read boundaries.
type segmentedReader struct {
	segments []string
}

func (r *segmentedReader) Read(p []byte) (int, error) {
	if len(r.segments) == 0 {
		return 0, io.EOF
	}
	segment := r.segments[0]
	r.segments = r.segments[1:]
	n := copy(p, segment)
	if n < len(segment) {
		r.segments = append([]string{segment[n:]}, r.segments...)
	}
	return n, nil
}

func testAggregate(t *testing.T, body io.Reader) *aggregation {
	t.Helper()
	agg, err := aggregateChatCompletion(body, zerolog.Nop(), metrics.NewRecorder())
	require.NoError(t, err)
	return agg
}

func TestAggregateConcatenatesDeltasInOrder(t *testing.T) {
	src := strings.Join([]string{
		`data: {"choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"content":" world"},"finish_reason":null}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	agg := testAggregate(t, strings.NewReader(src))
	assert.Equal(t, "Hello world", agg.content.String())
	assert.Equal(t, "assistant", agg.role)
	assert.Equal(t, "stop", agg.finishReason)
}

func TestAggregateRecordSplitAcrossReads(t *testing.T) {
	// A JSON record split mid-object between two reads must still
	// contribute exactly once.
	body := &segmentedReader{segments: []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel",
		"lo\"}}]}\n\n",
	}}

	agg := testAggregate(t, body)
	assert.Equal(t, "Hello", agg.content.String())
	assert.Equal(t, 1, agg.parsed)
}

func TestAggregateSkipsMalformedRecords(t *testing.T) {
	src := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"one"}}]}`,
		`data: not-json`,
		`data: {"choices":[{"delta":{"content":"two"}}]}`,
		``,
	}, "\n")

	agg := testAggregate(t, strings.NewReader(src))
	assert.Equal(t, "onetwo", agg.content.String())
	assert.Equal(t, 2, agg.parsed)
	assert.Equal(t, 1, agg.dropped)
}

func TestAggregateSkipsRecordsWithoutChoices(t *testing.T) {
	src := strings.Join([]string{
		`data: {"object":"ping"}`,
		`data: {"choices":[{"delta":{"content":"kept"}}]}`,
		``,
	}, "\n")

	agg := testAggregate(t, strings.NewReader(src))
	assert.Equal(t, "kept", agg.content.String())
	assert.Equal(t, 1, agg.dropped)
}

func TestAggregateStopsAtDoneSentinel(t *testing.T) {
	src := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"before"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"after"}}]}`,
		``,
	}, "\n")

	agg := testAggregate(t, strings.NewReader(src))
	assert.Equal(t, "before", agg.content.String())
}

func TestAggregateRecordsModelFromStream(t *testing.T) {
	src := `data: {"model":"gpt-4o","choices":[{"delta":{"content":"x"}}]}` + "\n"

	agg := testAggregate(t, strings.NewReader(src))
	assert.Equal(t, "gpt-4o", agg.model)
}

func TestAggregateSurfacesTransportError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	body := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"),
		&erroringReader{err: boom},
	)

	_, err := aggregateChatCompletion(body, zerolog.Nop(), metrics.NewRecorder())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, boom)
}

type erroringReader struct {
	err error
}

func (r *erroringReader) Read(p []byte) (int, error) {
	return 0, r.err
}

func TestBuildResponseDefaults(t *testing.T) {
	agg := &aggregation{}
	agg.content.WriteString("answer")

	resp := buildChatCompletionResponse(agg, "", "gpt-3.5-turbo")

	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.NotZero(t, resp.Created)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, 0, resp.Choices[0].Index)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "answer", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, Usage{}, resp.Usage)
}

func TestBuildResponseModelPrecedence(t *testing.T) {
	t.Run("header beats stream", func(t *testing.T) {
		agg := &aggregation{model: "stream-model"}
		resp := buildChatCompletionResponse(agg, "header-model", "default-model")
		assert.Equal(t, "header-model", resp.Model)
	})

	t.Run("stream beats default", func(t *testing.T) {
		agg := &aggregation{model: "stream-model"}
		resp := buildChatCompletionResponse(agg, "", "default-model")
		assert.Equal(t, "stream-model", resp.Model)
	})
}

func TestBuildResponseUsageAlwaysZero(t *testing.T) {
	agg := &aggregation{}
	agg.content.WriteString(strings.Repeat("long answer ", 1000))

	resp := buildChatCompletionResponse(agg, "", "gpt-3.5-turbo")
	assert.Zero(t, resp.Usage.PromptTokens)
	assert.Zero(t, resp.Usage.CompletionTokens)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestCompletionIDsAreUnique(t *testing.T) {
	first := newCompletionID()
	second := newCompletionID()
	if first == second {
		t.Fatalf("expected unique completion ids, got %q twice", first)
	}
}
