package client

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingTransport logs each API round trip with method, path, status and
// duration.
type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		t.logger.LogAttrs(req.Context(), slog.LevelError, "api request", attrs...)
		return nil, err
	}
	attrs = append(attrs, slog.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode >= 500:
		t.logger.LogAttrs(req.Context(), slog.LevelError, "api request", attrs...)
	case resp.StatusCode >= 400:
		t.logger.LogAttrs(req.Context(), slog.LevelWarn, "api request", attrs...)
	default:
		t.logger.LogAttrs(req.Context(), slog.LevelDebug, "api request", attrs...)
	}
	return resp, nil
}
