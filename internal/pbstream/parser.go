// Package pbstream incrementally parses the protobuf encoding of StreamBody:
//
//	message StreamBody {
//	  repeated bytes messages = 1;
//	  google.rpc.Status status = 2;
//	  repeated bytes noop = 15;
//	}
//
// Every field is length-delimited, so the parser only has to frame tags and
// lengths; payloads are surfaced as raw bytes.
package pbstream

import (
	"bytes"
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jacoelho/rpcstream/internal/stream"
)

// DefaultMaxMessageSize matches the default gRPC receive limit.
const DefaultMaxMessageSize = 4 << 20

type Options struct {
	// MaxMessageSize bounds a single field payload. Zero means DefaultMaxMessageSize.
	MaxMessageSize int
}

// Parser is a stream.BinaryParser for protobuf StreamBody.
type Parser struct {
	stream.Latch

	maxSize    int
	pending    []byte
	position   int
	statusSeen bool
}

var _ stream.BinaryParser[stream.Message] = (*Parser)(nil)

func New(opts Options) *Parser {
	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Parser{maxSize: maxSize}
}

// Parse consumes the next delta of the protobuf stream and returns the fields
// completed by it.
func (p *Parser) Parse(input []byte) ([]stream.Message, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	data := input
	if len(p.pending) > 0 {
		data = append(p.pending, input...)
	}

	var batch []stream.Message
	offset := 0
	for offset < len(data) {
		message, n, err := p.next(data[offset:], p.position+offset, input)
		if err != nil {
			return nil, p.Trip(err)
		}
		if n == 0 {
			break
		}
		offset += n
		if message.Slot != stream.SlotNoop {
			batch = append(batch, message)
		}
	}

	p.position += offset
	p.pending = append([]byte(nil), data[offset:]...)
	return batch, nil
}

// next frames one field at the start of b. It returns n == 0 when b holds an
// incomplete field.
func (p *Parser) next(b []byte, position int, input []byte) (stream.Message, int, error) {
	num, typ, tagLen := protowire.ConsumeTag(b)
	if tagLen < 0 {
		return p.incomplete(tagLen, position, input)
	}

	switch num {
	case stream.SlotMessage, stream.SlotStatus, stream.SlotNoop:
	default:
		return stream.Message{}, 0, stream.Errorf(stream.KindProtocol, position, string(input),
			"unexpected field number %d", num)
	}
	if typ != protowire.BytesType {
		return stream.Message{}, 0, stream.Errorf(stream.KindProtocol, position, string(input),
			"field %d has wire type %d, expecting length-delimited", num, typ)
	}

	size, sizeLen := protowire.ConsumeVarint(b[tagLen:])
	if sizeLen < 0 {
		return p.incomplete(sizeLen, position, input)
	}
	if size > uint64(p.maxSize) {
		return stream.Message{}, 0, stream.Errorf(stream.KindProtocol, position, string(input),
			"field %d of %d bytes exceeds limit of %d", num, size, p.maxSize)
	}

	end := tagLen + sizeLen + int(size)
	if end > len(b) {
		return stream.Message{}, 0, nil
	}

	if num != stream.SlotNoop {
		if p.statusSeen {
			return stream.Message{}, 0, stream.Errorf(stream.KindProtocol, position, string(input),
				"field %d after status", num)
		}
		p.statusSeen = num == stream.SlotStatus
	}

	payload := bytes.Clone(b[tagLen+sizeLen : end])
	return stream.Message{Slot: int(num), Value: payload}, end, nil
}

func (p *Parser) incomplete(code int, position int, input []byte) (stream.Message, int, error) {
	err := protowire.ParseError(code)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return stream.Message{}, 0, nil
	}
	return stream.Message{}, 0, &stream.Error{
		Kind:     stream.KindStructural,
		Position: position,
		Input:    string(input),
		Detail:   "malformed protobuf field header",
		Err:      err,
	}
}

// Done reports whether the input so far ends on a field boundary. The
// protobuf encoding has no end marker and the status is optional.
func (p *Parser) Done() bool {
	return len(p.pending) == 0
}

// StatusSeen reports whether the status field was parsed.
func (p *Parser) StatusSeen() bool {
	return p.statusSeen
}
