// Package feed drives a stream parser from an io.Reader, handing it every
// chunk as a new delta.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/jacoelho/rpcstream/internal/ratelimit"
	"github.com/jacoelho/rpcstream/internal/stream"
)

// DefaultChunkSize is the read size used when Options.ChunkSize is not set.
const DefaultChunkSize = 32 * 1024

// ErrIncomplete is returned when the reader ends before a parser that can
// recognise its own end has seen it.
var ErrIncomplete = errors.New("stream ended before completion")

type Options struct {
	ChunkSize int
	// Limiter throttles reads. Nil means unlimited.
	Limiter *ratelimit.Limiter
}

// Batch is the non-empty result of one Parse call.
type Batch[T any] struct {
	Messages []T
	// Offset is the number of bytes handed to the parser once this batch was produced.
	Offset int
}

// Run reads r until EOF and yields a batch for every chunk that completes at
// least one message. Iteration stops at the first read or parse error, or
// when ctx is done.
func Run[T any](ctx context.Context, r io.Reader, p stream.Parser[T], opts Options) iter.Seq2[Batch[T], error] {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	return func(yield func(Batch[T], error) bool) {
		buf := make([]byte, size)
		// carry holds the bytes of a rune split by the previous read
		var carry []byte
		offset := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(Batch[T]{Offset: offset}, err)
				return
			}

			n, readErr := r.Read(buf)
			if n > 0 && opts.Limiter != nil {
				if err := opts.Limiter.WaitN(ctx, n); err != nil {
					yield(Batch[T]{Offset: offset}, err)
					return
				}
			}

			data := append(carry, buf[:n]...)
			eof := errors.Is(readErr, io.EOF)
			if eof {
				carry = nil
			} else {
				cut := completeRunes(data)
				carry = append([]byte(nil), data[cut:]...)
				data = data[:cut]
			}

			if len(data) > 0 {
				messages, err := p.Parse(string(data))
				offset += len(data)
				if err != nil {
					yield(Batch[T]{Offset: offset}, err)
					return
				}
				if len(messages) > 0 && !yield(Batch[T]{Messages: messages, Offset: offset}, nil) {
					return
				}
			}

			if eof {
				if c, ok := p.(stream.Completer); ok && !c.Done() {
					yield(Batch[T]{Offset: offset}, fmt.Errorf("%w after %d bytes", ErrIncomplete, offset))
				}
				return
			}
			if readErr != nil {
				yield(Batch[T]{Offset: offset}, fmt.Errorf("reading stream: %w", readErr))
				return
			}
		}
	}
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completeRunes(b []byte) int {
	// a rune is at most utf8.UTFMax bytes, so only the tail needs checking
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
