// Package base64stream decodes base64 text that arrives in arbitrary chunks.
package base64stream

import (
	"encoding/base64"
	"strings"

	"github.com/jacoelho/rpcstream/internal/stream"
)

const quad = 4

// urlSafe maps the URL-safe alphabet onto the standard one so both, and any
// mix of them, decode with a single strict codec.
var urlSafe = strings.NewReplacer("-", "+", "_", "/")

// Decoder turns base64 text into bytes four characters at a time, keeping
// any incomplete group for the next call.
type Decoder struct {
	stream.Latch

	pending  string
	position int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode returns the bytes of every complete group buffered so far, or nil
// when fewer than four characters are available.
func (d *Decoder) Decode(input string) ([]byte, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}

	buffered := d.pending + input
	groups := len(buffered) / quad
	if groups == 0 {
		d.pending = buffered
		return nil, nil
	}

	consumed := groups * quad
	text := buffered[:consumed]
	if i := strings.IndexAny(text, " \t\r\n"); i >= 0 {
		return nil, d.Trip(stream.Errorf(stream.KindEncoding, d.position+i, input,
			"whitespace %q inside base64 data", text[i]))
	}

	text = urlSafe.Replace(text)
	out := make([]byte, 0, groups*3)
	buf := make([]byte, 3)
	for offset := 0; offset < consumed; offset += quad {
		n, err := base64.StdEncoding.Decode(buf, []byte(text[offset:offset+quad]))
		if err != nil {
			return nil, d.Trip(&stream.Error{
				Kind:     stream.KindEncoding,
				Position: d.position + offset,
				Input:    input,
				Detail:   "malformed base64 group",
				Err:      err,
			})
		}
		out = append(out, buf[:n]...)
	}

	d.position += consumed
	d.pending = buffered[consumed:]
	return out, nil
}

// Pending is the number of characters waiting for a complete group.
func (d *Decoder) Pending() int {
	return len(d.pending)
}
