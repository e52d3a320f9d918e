package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/batchgate/batchgate/internal/config"
	"github.com/batchgate/batchgate/internal/metrics"
)

type Server struct {
	forwarder    *Forwarder
	mux          *http.ServeMux
	logger       zerolog.Logger
	metrics      *metrics.Recorder
	defaultModel string
}

func New(logger zerolog.Logger, cfg *config.Config) *Server {
	client := NewHTTPClient(cfg.UpstreamTimeout)
	s := &Server{
		forwarder:    NewForwarder(client, cfg.UpstreamURL, logger),
		mux:          http.NewServeMux(),
		logger:       logger,
		metrics:      metrics.NewRecorder(),
		defaultModel: cfg.DefaultModel,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/chat/completions", s.chatCompletionsHandler)
	s.mux.HandleFunc("/v1/models", s.modelsHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/", s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

// statusWriter captures the response code for request logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.metrics.Request(strconv.Itoa(sw.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := modelsResponse{
		Object: "list",
		Data:   supportedModels(s.defaultModel),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode models response")
	}
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

// chatCompletionsHandler relays the inbound chat request to the upstream
// endpoint and collapses the SSE reply into one chat.completion envelope.
// With "stream": true in the body, the upstream SSE is passed through
// verbatim instead.
func (s *Server) chatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	requestBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var chatReq ChatCompletionRequest
	if err := json.Unmarshal(requestBodyBytes, &chatReq); err != nil {
		s.logger.Error().Err(err).Msg("Error unmarshalling request body")
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}
	if len(chatReq.Messages) == 0 {
		http.Error(w, "Request body must contain a messages array", http.StatusBadRequest)
		return
	}

	s.logger.Info().
		Str("model", chatReq.Model).
		Int("message_count", len(chatReq.Messages)).
		Bool("stream", chatReq.wantsStream()).
		Str("user_agent", r.UserAgent()).
		Msg("Processing chat completion request")

	resp, err := s.forwarder.Forward(r.Context(), r.Header, requestBodyBytes)
	if err != nil {
		s.metrics.UpstreamError()
		s.logger.Error().Err(err).Msg("Error making request to upstream endpoint")
		http.Error(w, "Failed to communicate with upstream API: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.mirrorUpstreamError(w, resp)
		return
	}

	if chatReq.wantsStream() {
		s.streamResponse(w, resp)
		return
	}

	agg, err := aggregateChatCompletion(resp.Body, s.logger, s.metrics)
	if err != nil {
		// The connection dropped mid-stream. The partial aggregation is
		// discarded rather than served as a degraded success.
		s.metrics.UpstreamError()
		s.logger.Error().Err(err).Msg("Upstream stream failed before completion")
		http.Error(w, "Upstream stream failed before completion: "+err.Error(), http.StatusBadGateway)
		return
	}

	response := buildChatCompletionResponse(agg, resp.Header.Get("Openai-Model"), s.defaultModel)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("Error writing chat completion response")
	}
}

// mirrorUpstreamError relays a non-200 upstream reply unchanged.
func (s *Server) mirrorUpstreamError(w http.ResponseWriter, resp *http.Response) {
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading error response body")
	} else {
		s.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("content_type", resp.Header.Get("Content-Type")).
			Str("response_body", string(responseBody)).
			Msg("Received error response from upstream API")
	}

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(responseBody); err != nil {
		s.logger.Error().Err(err).Msg("Error writing error response body to client")
	}
}

// streamResponse passes the upstream SSE stream through with flush-per-event.
func (s *Server) streamResponse(w http.ResponseWriter, resp *http.Response) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var out io.Writer = w
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
		out = sseFlushWriter{w: w, f: flusher}
	} else {
		s.logger.Warn().Msg("ResponseWriter does not support flushing - streaming may be buffered")
	}

	streamStart := time.Now()
	if err := passThroughSSEStream(resp.Body, out); err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			s.metrics.UpstreamError()
		}
		s.logger.Error().Err(err).Msg("Error streaming SSE response")
		return
	}
	s.logger.Debug().
		Dur("elapsed", time.Since(streamStart)).
		Msg("Streaming response completed")
}
