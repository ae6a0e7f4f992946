package pipeline

import (
	"github.com/jacoelho/rpcstream/internal/base64stream"
	"github.com/jacoelho/rpcstream/internal/stream"
)

// Base64Parser feeds base64 text through a decoder into a binary framing
// stage. Failures of either stage are re-wrapped with the text position and
// latch the composed parser.
type Base64Parser[T any] struct {
	stream.Latch

	decoder  *base64stream.Decoder
	framing  stream.BinaryParser[T]
	position int
}

func NewBase64Parser[T any](framing stream.BinaryParser[T]) *Base64Parser[T] {
	return &Base64Parser[T]{
		decoder: base64stream.NewDecoder(),
		framing: framing,
	}
}

func (p *Base64Parser[T]) Parse(input string) ([]T, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	position := p.position
	p.position += len(input)

	decoded, err := p.decoder.Decode(input)
	if err != nil {
		return nil, p.Trip(stream.Chain(position, err))
	}
	if decoded == nil {
		return nil, nil
	}

	batch, err := p.framing.Parse(decoded)
	if err != nil {
		return nil, p.Trip(stream.Chain(position, err))
	}
	return batch, nil
}

// Done reports whether the framing stage reached its end with no base64
// characters left over.
func (p *Base64Parser[T]) Done() bool {
	c, ok := p.framing.(stream.Completer)
	return ok && c.Done() && p.decoder.Pending() == 0
}
