// Package output renders stream messages as JSON lines or YAML documents.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/rpcstream/internal/selector"
	"github.com/jacoelho/rpcstream/internal/stream"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Formatter writes messages to its destination as they arrive.
type Formatter interface {
	Format(messages ...stream.Message) error
}

type Options struct {
	// Selector, when set, replaces each message value by the nodes it matches.
	Selector *selector.Selector
}

type encoder interface {
	encode(r Record) error
}

type formatter struct {
	encoder  encoder
	selector *selector.Selector
}

// New returns a formatter writing to stdout.
func New(format Format, opts Options) (Formatter, error) {
	return NewWithWriter(format, os.Stdout, opts)
}

// NewWithWriter returns a formatter writing to w.
func NewWithWriter(format Format, w io.Writer, opts Options) (Formatter, error) {
	var enc encoder
	switch format {
	case FormatJSON:
		enc = newJSONLines(w)
	case FormatYAML:
		enc = newYAMLDocuments(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &formatter{encoder: enc, selector: opts.Selector}, nil
}

func (f *formatter) Format(messages ...stream.Message) error {
	for _, message := range messages {
		record, err := Decode(message)
		if err != nil {
			return err
		}

		for _, r := range f.apply(record) {
			if err := f.encoder.encode(r); err != nil {
				return fmt.Errorf("writing %s: %w", r.Kind, err)
			}
		}
	}
	return nil
}

// apply runs the selector over message values. A message without matches
// produces no output; statuses are never filtered.
func (f *formatter) apply(r Record) []Record {
	if f.selector == nil || r.Kind != KindMessage || r.Binary {
		return []Record{r}
	}

	nodes := f.selector.Select(r.Value)
	records := make([]Record, len(nodes))
	for i, node := range nodes {
		records[i] = Record{Kind: KindMessage, Value: node}
	}
	return records
}
