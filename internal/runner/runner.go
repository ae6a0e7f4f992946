package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/jacoelho/rpcstream/internal/config"
	"github.com/jacoelho/rpcstream/internal/exit"
	"github.com/jacoelho/rpcstream/internal/feed"
	"github.com/jacoelho/rpcstream/internal/output"
	"github.com/jacoelho/rpcstream/internal/pipeline"
	"github.com/jacoelho/rpcstream/internal/sanitizer"
	"github.com/jacoelho/rpcstream/internal/source"
	"github.com/jacoelho/rpcstream/internal/stream"
)

// Runner parses one stream and prints its messages.
type Runner struct {
	client    *http.Client
	config    *config.Config
	output    io.Writer
	errOutput io.Writer
	newID     func() string
}

// New creates a new Runner with the provided configuration.
// If creation fails, returns nil runner and exit result.
func New(cfg *config.Config) (*Runner, *exit.Result) {
	var client *http.Client
	if source.IsURL(cfg.Source) {
		var err error
		client, err = cfg.HTTPClient()
		if err != nil {
			return nil, exit.Errorf("Error creating runner: %v\n", err)
		}
	}

	return &Runner{
		client:    client,
		config:    cfg,
		output:    os.Stdout,
		errOutput: os.Stderr,
		newID:     uuid.NewString,
	}, nil
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) logger() *slog.Logger {
	level := slog.LevelInfo
	if r.config.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(r.errOutput, &slog.HandlerOptions{Level: level}))
}

// Run reads the configured stream to the end and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	streamID := r.newID()
	logger := r.logger().With("stream_id", streamID, "format", string(r.config.Format))

	parser, err := pipeline.New(r.config.Format, r.config.PipelineOptions())
	if err != nil {
		logger.Error("cannot build parser", "error", err)
		return exit.CodeError
	}

	formatter, err := output.NewWithWriter(r.config.Output, r.output, output.Options{Selector: r.config.Select})
	if err != nil {
		logger.Error("cannot build formatter", "error", err)
		return exit.CodeError
	}

	if source.IsURL(r.config.Source) {
		logger.Debug("opening stream",
			"url", sanitizer.URL(r.config.Source),
			"headers", sanitizer.Headers(r.config.Headers, streamID))
	} else {
		logger.Debug("opening stream", "source", r.config.Source)
	}

	body, err := source.Open(ctx, source.Config{
		Location: r.config.Source,
		Headers:  r.config.Headers,
		Client:   r.client,
	})
	if err != nil {
		logger.Error("cannot open stream", "error", err)
		return exit.CodeError
	}
	defer body.Close()

	var messages, offset int
	for batch, err := range feed.Run(ctx, body, parser, r.config.FeedOptions()) {
		offset = batch.Offset
		if err != nil {
			return r.fail(logger, err, offset)
		}

		logger.Debug("batch", "messages", len(batch.Messages), "offset", batch.Offset)
		if err := formatter.Format(batch.Messages...); err != nil {
			return r.fail(logger, err, offset)
		}
		messages += len(batch.Messages)
	}

	logger.Debug("stream complete", "messages", messages, "bytes", offset)
	return exit.CodeOK
}

// fail logs err and maps it onto an exit code.
func (r *Runner) fail(logger *slog.Logger, err error, offset int) int {
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted", "bytes", offset)
		return exit.CodeError

	case isInvalidStream(err):
		attrs := []any{"error", err, "bytes", offset}
		var se *stream.Error
		if errors.As(err, &se) {
			attrs = append(attrs, "kind", stream.KindOf(err).String(), "position", se.Position)
		}
		logger.Error("invalid stream", attrs...)
		return exit.CodeInvalidStream

	default:
		logger.Error("stream failed", "error", fmt.Errorf("after %d bytes: %w", offset, err))
		return exit.CodeError
	}
}

func isInvalidStream(err error) bool {
	for _, target := range []error{
		stream.ErrStructural,
		stream.ErrEncoding,
		stream.ErrProtocol,
		stream.ErrInvalidStream,
		feed.ErrIncomplete,
		output.ErrDecode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
