package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jacoelho/rpcstream/internal/exit"
	"github.com/jacoelho/rpcstream/internal/feed"
	"github.com/jacoelho/rpcstream/internal/httpclient"
	"github.com/jacoelho/rpcstream/internal/output"
	"github.com/jacoelho/rpcstream/internal/pipeline"
	"github.com/jacoelho/rpcstream/internal/ratelimit"
	"github.com/jacoelho/rpcstream/internal/selector"
	"github.com/jacoelho/rpcstream/internal/source"
)

const (
	// DefaultTimeout bounds connecting and waiting for response headers.
	DefaultTimeout = 30 * time.Second
)

var (
	ErrNoArguments         = errors.New("no arguments provided")
	ErrTooManySources      = errors.New("only one stream source can be given")
	ErrInvalidHeaderFormat = errors.New("header must be in format name=value")
	ErrEmptyHeaderName     = errors.New("header name cannot be empty")
	ErrInvalidChunkSize    = errors.New("chunk size must be positive")
	ErrInvalidRateLimit    = errors.New("rate limit cannot be negative")
	ErrHeadersWithoutURL   = errors.New("headers and TLS options require a URL source")
	ErrSelectOnBinary      = errors.New("select requires a JSON stream format")
)

// Config represents the complete configuration for the rpcstream tool.
type Config struct {
	// Stream source: file path, http(s) URL or "-" for stdin
	Source string

	// Parsing
	Format         pipeline.Format
	Compact        bool
	Raw            bool
	MaxMessageSize int
	ChunkSize      int
	RateLimit      float64 // Bytes per second (0 = unlimited)

	// Output
	Output output.Format
	Select *selector.Selector
	Debug  bool

	// HTTP client configuration
	Insecure       bool
	CACertFile     string
	RequestTimeout time.Duration
	Headers        http.Header
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// HTTPClient creates an HTTP client configured with the settings from this Config.
func (c *Config) HTTPClient() (*http.Client, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	return httpclient.New(tlsConfig, c.RequestTimeout), nil
}

// PipelineOptions returns the parser options for the configured format.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		AllowCompactArrayFormat: c.Compact,
		DeliverRawString:        c.Raw,
		MaxMessageSize:          c.MaxMessageSize,
	}
}

// FeedOptions returns how the source is chunked and throttled into the parser.
func (c *Config) FeedOptions() feed.Options {
	return feed.Options{
		ChunkSize: c.ChunkSize,
		Limiter:   ratelimit.New(c.RateLimit, c.ChunkSize),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w, got: %d", ErrInvalidChunkSize, c.ChunkSize)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("%w, got: %g", ErrInvalidRateLimit, c.RateLimit)
	}

	if c.Select != nil && c.Format.IsBinary() {
		return fmt.Errorf("%w, got: %s", ErrSelectOnBinary, c.Format)
	}

	isURL := source.IsURL(c.Source)
	if !isURL && (len(c.Headers) > 0 || c.CACertFile != "" || c.Insecure) {
		return ErrHeadersWithoutURL
	}

	if !isURL && c.Source != source.Stdin {
		if _, err := os.Stat(c.Source); err != nil {
			return fmt.Errorf("stream file %s not found: %w", c.Source, err)
		}
	}

	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	return nil
}

// headersFlag implements flag.Value for parsing multiple -header flags.
type headersFlag http.Header

// String returns a string representation of the headers flag for flag.Value interface.
func (h headersFlag) String() string {
	var pairs []string
	for k, values := range h {
		for _, v := range values {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return strings.Join(pairs, ",")
}

// Set parses and stores a header in name=value format for flag.Value interface.
func (h headersFlag) Set(value string) error {
	name, headerValue, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("%w, got: %s", ErrInvalidHeaderFormat, value)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyHeaderName
	}

	http.Header(h).Add(name, headerValue)
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	// Suppress error output since we handle it ourselves
	fs.SetOutput(io.Discard)

	var (
		format         = fs.String("format", string(pipeline.FormatEnvelope), "Stream format: "+strings.Join(pipeline.Formats(), ", "))
		compact        = fs.Bool("compact", false, "Tolerate elided array elements such as [1,,2] in json format")
		raw            = fs.Bool("raw", false, "Keep json format elements as raw text")
		maxMessageSize = fs.Int("max-message-size", 0, "Largest binary message in bytes (0 for the 4 MiB default)")
		chunkSize      = fs.Int("chunk-size", feed.DefaultChunkSize, "Read size in bytes")
		rateLimit      = fs.Float64("rate-limit", 0, "Rate limit in bytes per second (0 for unlimited)")
		outputFormat   = fs.String("output", string(output.FormatJSON), "Output format: json or yaml")
		selectExpr     = fs.String("select", "", "JSONPath applied to every decoded message")
		debug          = fs.Bool("debug", false, "Enable debug logging of chunks and batches")
		insecure       = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile     = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		timeout        = fs.Duration("timeout", DefaultTimeout, "Timeout for connecting and receiving response headers")
		headers        = make(headersFlag)
	)

	fs.Var(headers, "header", "Request header in format name=value (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	location := source.Stdin
	switch positional := fs.Args(); len(positional) {
	case 0:
	case 1:
		location = positional[0]
	default:
		return nil, exit.Errorf("Error: %v, got: %s\n\n%s", ErrTooManySources, strings.Join(positional, " "), Usage())
	}

	streamFormat, err := pipeline.ParseFormat(*format)
	if err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	out, err := output.ParseFormat(*outputFormat)
	if err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	var sel *selector.Selector
	if *selectExpr != "" {
		sel, err = selector.Compile(*selectExpr)
		if err != nil {
			return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
		}
	}

	config := &Config{
		Source:         location,
		Format:         streamFormat,
		Compact:        *compact,
		Raw:            *raw,
		MaxMessageSize: *maxMessageSize,
		ChunkSize:      *chunkSize,
		RateLimit:      *rateLimit,
		Output:         out,
		Select:         sel,
		Debug:          *debug,
		Insecure:       *insecure,
		CACertFile:     *caCertFile,
		RequestTimeout: *timeout,
		Headers:        http.Header(headers),
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `rpcstream - incremental parser for streamed RPC responses

Usage: rpcstream [options] [file | url | -]

Reads the stream from standard input when no source is given.

Options:
  --format FORMAT         Stream format: json, envelope, base64-envelope, grpc-web-text (default: envelope)
  --compact               Tolerate elided array elements such as [1,,2] in json format
  --raw                   Keep json format elements as raw text
  --max-message-size N    Largest binary message in bytes (0 for the 4 MiB default)
  --chunk-size N          Read size in bytes (default: 32768)
  --rate-limit N          Rate limit in bytes per second (0 for unlimited)
  --output FORMAT         Output format: json or yaml (default: json)
  --select JSONPATH       JSONPath applied to every decoded message (json and envelope formats)
  --debug                 Enable debug logging of chunks and batches
  --insecure              Skip TLS certificate verification
  --cacert FILE           Path to CA certificate file for TLS verification
  --timeout DURATION      Timeout for connecting and receiving response headers (default: 30s)
  --header NAME=VALUE     Request header (can be used multiple times)
  -h, --help              Show this help message

Exit codes:
  0  stream parsed completely
  1  usage, I/O or transport error
  2  malformed or truncated stream

Examples:
  rpcstream body.json                                # Parse a StreamBody envelope
  rpcstream --format json --compact < array.json     # Parse a compact JSON array from stdin
  rpcstream --format base64-envelope --output yaml https://host/rpc
  rpcstream --select '$.items[*].id' body.json       # Print selected fields of each message
  rpcstream --rate-limit 64 --debug body.json        # Replay a stream slowly`
}
