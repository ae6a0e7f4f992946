package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jacoelho/rpcstream/internal/stream"
)

func protoField(num protowire.Number, payload string) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendString(b, payload)
}

func webFrame(flags byte, payload string) []byte {
	b := make([]byte, 5)
	b[0] = flags
	binary.BigEndian.PutUint32(b[1:], uint32(len(payload)))
	return append(b, payload...)
}

func feed(p stream.Parser[stream.Message], chunks ...string) ([]stream.Message, error) {
	var all []stream.Message
	for _, chunk := range chunks {
		batch, err := p.Parse(chunk)
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

func TestNew_Formats(t *testing.T) {
	protoBody := base64.StdEncoding.EncodeToString(bytes.Join([][]byte{
		protoField(1, "m1"),
		protoField(15, ""),
		protoField(1, "m2"),
		protoField(2, "st"),
	}, nil))
	webBody := base64.StdEncoding.EncodeToString(webFrame(0x00, "m1")) +
		base64.StdEncoding.EncodeToString(webFrame(0x80, "grpc-status: 0\r\n"))

	tests := []struct {
		name   string
		format Format
		opts   Options
		input  string
		want   []stream.Message
	}{
		{
			name:   "json",
			format: FormatJSON,
			opts:   Options{DeliverRawString: true},
			input:  `[{"a":1},2]`,
			want: []stream.Message{
				{Slot: stream.SlotMessage, Value: stream.RawJSON(`{"a":1}`)},
				{Slot: stream.SlotMessage, Value: stream.RawJSON(`2`)},
			},
		},
		{
			name:   "json_decoded",
			format: FormatJSON,
			input:  `["hello","123",7,{"n":1.5}]`,
			want: []stream.Message{
				{Slot: stream.SlotMessage, Value: "hello"},
				{Slot: stream.SlotMessage, Value: "123"},
				{Slot: stream.SlotMessage, Value: json.Number("7")},
				{Slot: stream.SlotMessage, Value: map[string]any{"n": json.Number("1.5")}},
			},
		},
		{
			name:   "json_compact",
			format: FormatJSON,
			opts:   Options{DeliverRawString: true, AllowCompactArrayFormat: true},
			input:  `[,1,,]`,
			want:   []stream.Message{{Slot: stream.SlotMessage, Value: stream.RawJSON(`1`)}},
		},
		{
			name:   "envelope",
			format: FormatEnvelope,
			input:  `[["m1"],"s1"]`,
			want: []stream.Message{
				{Slot: stream.SlotMessage, Value: stream.RawJSON(`"m1"`)},
				{Slot: stream.SlotStatus, Value: stream.RawJSON(`"s1"`)},
			},
		},
		{
			name:   "base64_envelope",
			format: FormatBase64Envelope,
			input:  protoBody,
			want: []stream.Message{
				{Slot: stream.SlotMessage, Value: []byte("m1")},
				{Slot: stream.SlotMessage, Value: []byte("m2")},
				{Slot: stream.SlotStatus, Value: []byte("st")},
			},
		},
		{
			name:   "grpc_web_text",
			format: FormatGRPCWebText,
			input:  webBody,
			want: []stream.Message{
				{Slot: stream.SlotMessage, Value: []byte("m1")},
				{Slot: stream.SlotStatus, Value: map[string]string{"grpc-status": "0"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole, err := New(tt.format, tt.opts)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := feed(whole, tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse() = %#v, want %#v", got, tt.want)
			}
			if c, ok := whole.(stream.Completer); !ok || !c.Done() {
				t.Errorf("Done() = false after complete stream")
			}

			for cut := 0; cut <= len(tt.input); cut++ {
				p, _ := New(tt.format, tt.opts)
				got, err := feed(p, tt.input[:cut], tt.input[cut:])
				if err != nil {
					t.Fatalf("cut %d: error = %v", cut, err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("cut %d: got %#v, want %#v", cut, got, tt.want)
				}
			}
		})
	}
}

func TestBase64Parser_NeedsMoreData(t *testing.T) {
	p, err := New(FormatBase64Envelope, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	batch, err := p.Parse("CgJ")
	if err != nil || batch != nil {
		t.Errorf("Parse() = %#v, %v, want nil, nil", batch, err)
	}
	if !p.IsInputValid() {
		t.Error("IsInputValid() = false while waiting for data")
	}
}

func TestBase64Parser_Errors(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		chunks   []string
		sentinel error
		kind     stream.Kind
		position int
	}{
		{
			name:     "bad_alphabet",
			format:   FormatBase64Envelope,
			chunks:   []string{"CgJt", "M*=="},
			sentinel: stream.ErrEncoding,
			kind:     stream.KindEncoding,
			position: 4,
		},
		{
			name:     "unknown_protobuf_field",
			format:   FormatBase64Envelope,
			chunks:   []string{base64.StdEncoding.EncodeToString(protoField(3, "x"))},
			sentinel: stream.ErrProtocol,
			kind:     stream.KindProtocol,
			position: 0,
		},
		{
			name:     "compressed_grpc_web_frame",
			format:   FormatGRPCWebText,
			chunks: []string{
				base64.StdEncoding.EncodeToString(webFrame(0x00, "ab")),
				base64.StdEncoding.EncodeToString(webFrame(0x01, "x")),
			},
			sentinel: stream.ErrProtocol,
			kind:     stream.KindProtocol,
			position: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.format, Options{})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = feed(p, tt.chunks...)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.sentinel)
			}
			if got := stream.KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %s, want %s", got, tt.kind)
			}

			var se *stream.Error
			if !errors.As(err, &se) || se.Kind != stream.KindChained {
				t.Fatalf("Parse() error = %v, want chained", err)
			}
			if se.Position != tt.position {
				t.Errorf("Position = %d, want %d", se.Position, tt.position)
			}

			if p.IsInputValid() {
				t.Error("IsInputValid() = true after failure")
			}
			if _, err := p.Parse("AAAA"); !errors.Is(err, stream.ErrInvalidStream) {
				t.Errorf("Parse() after failure = %v, want ErrInvalidStream", err)
			}
		})
	}
}

func TestNew_JSONExtraInput(t *testing.T) {
	inputs := []string{"[1]x", "[1] \n x", `["a",2] ]`}

	for _, input := range inputs {
		p, _ := New(FormatJSON, Options{})
		_, err := feed(p, input)
		want := stream.KindOf(err)
		if want != stream.KindStructural {
			t.Fatalf("Parse(%q) error = %v, want structural", input, err)
		}
		var se *stream.Error
		errors.As(err, &se)
		wantPosition := se.Position
		if p.IsInputValid() {
			t.Errorf("Parse(%q): IsInputValid() = true after extra input", input)
		}

		for cut := 0; cut <= len(input); cut++ {
			p, _ := New(FormatJSON, Options{})
			_, err := feed(p, input[:cut], input[cut:])
			if !errors.As(err, &se) || se.Kind != want || se.Position != wantPosition {
				t.Fatalf("cut %d of %q: error = %v, want %s error at %d", cut, input, err, want, wantPosition)
			}
		}
	}
}

func TestNew_JSONTrailingWhitespace(t *testing.T) {
	p, _ := New(FormatJSON, Options{})
	got, err := feed(p, "[1] \n", "\t ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Parse() = %#v, want one message", got)
	}
	if c, ok := p.(stream.Completer); !ok || !c.Done() {
		t.Error("Done() = false after complete array")
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range Formats() {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", name, err)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(xml) error = %v, want ErrUnknownFormat", err)
	}
	if _, err := New("xml", Options{}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("New(xml) error = %v, want ErrUnknownFormat", err)
	}
}
