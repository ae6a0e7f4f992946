// Package grpcweb incrementally parses gRPC-Web response frames.
//
// Frame format:
//   - 1 byte: flags (0x80 = trailer, 0x01 = compressed)
//   - 4 bytes: big-endian payload length
//   - N bytes: payload
package grpcweb

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/jacoelho/rpcstream/internal/stream"
)

const (
	// FlagTrailer marks the frame carrying the trailing metadata.
	FlagTrailer byte = 0x80
	// FlagCompressed marks a compressed payload.
	FlagCompressed byte = 0x01
	// HeaderSize is the size of the frame header (1 byte flags + 4 bytes length)
	HeaderSize = 5

	// DefaultMaxFrameSize matches the default gRPC receive limit.
	DefaultMaxFrameSize = 4 << 20
)

type Options struct {
	// MaxFrameSize bounds a single frame payload. Zero means DefaultMaxFrameSize.
	MaxFrameSize int
}

// Parser is a stream.BinaryParser for gRPC-Web frames. Data frames surface as
// stream.SlotMessage with the payload bytes, the trailer frame as
// stream.SlotStatus with its parsed metadata.
type Parser struct {
	stream.Latch

	maxSize     int
	pending     []byte
	position    int
	trailerSeen bool
}

var _ stream.BinaryParser[stream.Message] = (*Parser)(nil)

func New(opts Options) *Parser {
	maxSize := opts.MaxFrameSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Parser{maxSize: maxSize}
}

// Parse consumes the next delta and returns the frames completed by it.
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
		if offset+HeaderSize > len(data) {
			break
		}

		position := p.position + offset
		flags := data[offset]
		length := binary.BigEndian.Uint32(data[offset+1 : offset+HeaderSize])

		if p.trailerSeen {
			return nil, p.Trip(stream.Errorf(stream.KindProtocol, position, string(input),
				"frame after trailer"))
		}
		if flags&FlagCompressed != 0 {
			return nil, p.Trip(stream.Errorf(stream.KindProtocol, position, string(input),
				"compressed frames are not supported"))
		}
		if flags&^FlagTrailer != 0 {
			return nil, p.Trip(stream.Errorf(stream.KindProtocol, position, string(input),
				"unknown frame flags %#02x", flags))
		}
		if uint64(length) > uint64(p.maxSize) {
			return nil, p.Trip(stream.Errorf(stream.KindProtocol, position, string(input),
				"frame of %d bytes exceeds limit of %d", length, p.maxSize))
		}

		frameEnd := offset + HeaderSize + int(length)
		if frameEnd > len(data) {
			break
		}

		payload := data[offset+HeaderSize : frameEnd]
		if flags&FlagTrailer != 0 {
			p.trailerSeen = true
			batch = append(batch, stream.Message{Slot: stream.SlotStatus, Value: ParseTrailers(payload)})
		} else {
			batch = append(batch, stream.Message{Slot: stream.SlotMessage, Value: bytes.Clone(payload)})
		}
		offset = frameEnd
	}

	p.position += offset
	p.pending = append([]byte(nil), data[offset:]...)
	return batch, nil
}

// Done reports whether the trailer frame was seen. An empty body also counts,
// as trailers-only responses carry the status in the HTTP headers.
func (p *Parser) Done() bool {
	return len(p.pending) == 0 && (p.trailerSeen || p.position == 0)
}

// ParseTrailers parses trailer frame data to headers.
// Expects HTTP/1.1 header format: "key1: value1\r\nkey2: value2\r\n"
func ParseTrailers(data []byte) map[string]string {
	trailers := make(map[string]string)

	for line := range strings.SplitSeq(string(data), "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		trailers[key] = strings.TrimSpace(value)
	}

	return trailers
}
