// Package pipeline assembles the parsers for each supported wire format.
package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jacoelho/rpcstream/internal/grpcweb"
	"github.com/jacoelho/rpcstream/internal/jsonarray"
	"github.com/jacoelho/rpcstream/internal/pbstream"
	"github.com/jacoelho/rpcstream/internal/stream"
	"github.com/jacoelho/rpcstream/internal/streambody"
)

// Format names a wire format.
type Format string

const (
	// FormatJSON is a plain top-level JSON array; every element is a message.
	FormatJSON Format = "json"
	// FormatEnvelope is the JSON StreamBody envelope.
	FormatEnvelope Format = "envelope"
	// FormatBase64Envelope is base64 text carrying the protobuf StreamBody.
	FormatBase64Envelope Format = "base64-envelope"
	// FormatGRPCWebText is base64 text carrying gRPC-Web frames.
	FormatGRPCWebText Format = "grpc-web-text"
)

var ErrUnknownFormat = errors.New("unknown format")

var formats = []Format{FormatJSON, FormatEnvelope, FormatBase64Envelope, FormatGRPCWebText}

// Formats lists the supported format names.
func Formats() []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(name)
	if !slices.Contains(formats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// IsBinary reports whether the format yields raw payload bytes instead of JSON text.
func (f Format) IsBinary() bool {
	return f == FormatBase64Envelope || f == FormatGRPCWebText
}

type Options struct {
	// AllowCompactArrayFormat tolerates elided elements in a plain JSON array.
	AllowCompactArrayFormat bool
	// DeliverRawString keeps plain JSON array elements as raw text.
	DeliverRawString bool
	// MaxMessageSize bounds binary payloads. Zero uses the stage default.
	MaxMessageSize int
}

// New returns a parser for one stream in the given format.
func New(format Format, opts Options) (stream.Parser[stream.Message], error) {
	switch format {
	case FormatJSON:
		return &taggedArray{
			Parser: jsonarray.New(jsonarray.Options{
				AllowCompactArrayFormat: opts.AllowCompactArrayFormat,
				DeliverRawString:        opts.DeliverRawString,
			}),
			raw: opts.DeliverRawString,
		}, nil
	case FormatEnvelope:
		return streambody.New(), nil
	case FormatBase64Envelope:
		return NewBase64Parser(pbstream.New(pbstream.Options{MaxMessageSize: opts.MaxMessageSize})), nil
	case FormatGRPCWebText:
		return NewBase64Parser(grpcweb.New(grpcweb.Options{MaxFrameSize: opts.MaxMessageSize})), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// taggedArray surfaces plain array elements as messages. Nothing may follow
// the array, so input after its closing bracket is checked here.
type taggedArray struct {
	*jsonarray.Parser
	raw bool
}

func (t *taggedArray) Parse(input string) ([]stream.Message, error) {
	elements, err := t.Parser.Parse(input)
	if err != nil {
		return nil, err
	}

	if extra := t.ExtraInput(); extra != "" {
		if i := jsonarray.FirstNonSpace(extra); i >= 0 {
			position := t.Position() - len(extra) + i
			return nil, t.Trip(stream.Errorf(stream.KindStructural, position, input,
				"extra input %q after array end", extra[i]))
		}
	}

	if elements == nil {
		return nil, nil
	}

	batch := make([]stream.Message, len(elements))
	for i, element := range elements {
		if text, ok := element.(string); ok && t.raw {
			element = stream.RawJSON(text)
		}
		batch[i] = stream.Message{Slot: stream.SlotMessage, Value: element}
	}
	return batch, nil
}
