// Package source opens the byte stream to parse: standard input, a file or
// the body of an HTTP(S) GET.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Stdin is the location naming standard input.
const Stdin = "-"

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Config describes where the stream comes from.
type Config struct {
	Location string
	Headers  http.Header
	// Client is required for URL locations.
	Client *http.Client
}

// IsURL reports whether location is fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns the stream body. The caller must close it.
func Open(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	switch {
	case cfg.Location == Stdin || cfg.Location == "":
		return io.NopCloser(os.Stdin), nil
	case IsURL(cfg.Location):
		return openURL(ctx, cfg)
	default:
		f, err := os.Open(cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", cfg.Location, err)
		}
		return f, nil
	}
}

func openURL(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	if cfg.Client == nil {
		return nil, errors.New("no HTTP client configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range cfg.Headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return resp.Body, nil
}
