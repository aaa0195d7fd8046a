package api_functions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/metrics"
	"github.com/HannahMarsh/simple-onion-routing/pkg/utils"
	"github.com/pkg/errors"
)

// DefaultSendTimeout bounds a single hop's HTTP exchange.
const DefaultSendTimeout = 30 * time.Second

// maxBodySize caps an incoming /deliver body, both as sent and after decompression.
const maxBodySize = 16 << 20

// SendEnvelope POSTs envelope to the /deliver endpoint of the party at address
// (http://host:port). The body is gzip-compressed JSON.
func SendEnvelope(ctx context.Context, address, envelope string, timeout time.Duration) error {
	url := fmt.Sprintf("%s/deliver", address)
	slog.Debug("Sending envelope...", "to", address, "length", len(envelope))

	payload, err := json.Marshal(structs.EnvelopeApi{Envelope: envelope})
	if err != nil {
		return errors.Wrap(err, "api_functions.SendEnvelope(): failed to marshal envelope")
	}

	compressedBuffer, err := utils.Compress(payload)
	if err != nil {
		return errors.Wrap(err, "api_functions.SendEnvelope(): failed to compress envelope")
	}
	metrics.Observe(metrics.ENVELOPE_SIZE, float64(compressedBuffer.Len()))

	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	client := &http.Client{
		Timeout: timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &compressedBuffer)
	if err != nil {
		return errors.Wrap(err, "api_functions.SendEnvelope(): failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "api_functions.SendEnvelope(): failed to send POST request to %s", url)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Error("Error closing response body", "err", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("api_functions.SendEnvelope(): %s rejected envelope, status code: %d, status: %s", url, resp.StatusCode, resp.Status)
	}

	slog.Debug("✅ Successfully sent envelope.", "to", address)
	return nil
}

// StatusCoder lets a receive function choose the HTTP status of its rejection.
type StatusCoder interface {
	StatusCode() int
}

// StatusError attaches an HTTP status to a receive error.
type StatusError struct {
	Err  error
	Code int
}

func (e *StatusError) Error() string   { return e.Err.Error() }
func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) StatusCode() int { return e.Code }

func WithStatus(err error, code int) error {
	return &StatusError{Err: err, Code: code}
}

// HandleReceiveEnvelope decodes a /deliver request (plain or gzip JSON) and passes the
// envelope to receiveFunction. A receiveFunction error rejects the request.
func HandleReceiveEnvelope(w http.ResponseWriter, r *http.Request, receiveFunction func(envelope string) error) {
	var body []byte
	var err error
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	// Check if the request is gzipped
	if r.Header.Get("Content-Encoding") == "gzip" {
		body, err = utils.Decompress(r.Body, maxBodySize)
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, utils.ErrTooLarge) {
			slog.Warn("Rejecting oversized envelope", "limit", maxBodySize)
			http.Error(w, "envelope too large", http.StatusRequestEntityTooLarge)
		} else {
			slog.Error("Error reading envelope", "err", err)
			http.Error(w, "unable to read body", http.StatusBadRequest)
		}
		return
	}

	var e structs.EnvelopeApi
	if err = json.Unmarshal(body, &e); err != nil {
		slog.Error("Error decoding envelope", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err = receiveFunction(e.Envelope); err != nil {
		status := http.StatusInternalServerError
		var sc StatusCoder
		if errors.As(err, &sc) {
			status = sc.StatusCode()
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// WriteResult writes {"result": value} for the diagnostic getters.
func WriteResult[T any](w http.ResponseWriter, value *T) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(structs.ResultApi[T]{Result: value}); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// HandleLive answers the /status liveness probe.
func HandleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("live")); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// Serve runs handler on port in the background and returns a function that shuts the
// server down gracefully.
func Serve(port int, handler http.Handler) (shutdown func()) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func(server *http.Server) {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start HTTP server", "Addr", server.Addr, "err", err)
		}
	}(server)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("HTTP server forced to shutdown", "Addr", server.Addr, "err", err)
		}
	}
}
