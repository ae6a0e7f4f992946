package pbstream

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jacoelho/rpcstream/internal/stream"
)

func field(num protowire.Number, payload []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestParser_Fields(t *testing.T) {
	large := bytes.Repeat([]byte("x"), 300)
	body := join(
		field(1, []byte("m1")),
		field(15, nil),
		field(1, large),
		field(2, []byte{0x08, 0x05}),
	)

	p := New(Options{})
	got, err := p.Parse(body)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []stream.Message{
		{Slot: stream.SlotMessage, Value: []byte("m1")},
		{Slot: stream.SlotMessage, Value: large},
		{Slot: stream.SlotStatus, Value: []byte{0x08, 0x05}},
	}
	if len(got) != len(want) {
		t.Fatalf("Parse() returned %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Slot != want[i].Slot || !bytes.Equal(got[i].Value.([]byte), want[i].Value.([]byte)) {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !p.Done() || !p.StatusSeen() {
		t.Errorf("Done() = %v, StatusSeen() = %v, want true, true", p.Done(), p.StatusSeen())
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	body := join(
		field(1, bytes.Repeat([]byte("a"), 200)),
		field(1, []byte("b")),
		field(2, nil),
	)

	p := New(Options{})
	var slots []int
	for i := range body {
		batch, err := p.Parse(body[i : i+1])
		if err != nil {
			t.Fatalf("Parse() at %d error = %v", i, err)
		}
		for _, m := range batch {
			slots = append(slots, m.Slot)
		}
	}

	if len(slots) != 3 || slots[0] != 1 || slots[1] != 1 || slots[2] != 2 {
		t.Errorf("slots = %v, want [1 1 2]", slots)
	}
}

func TestParser_IncompleteReturnsNil(t *testing.T) {
	p := New(Options{})

	frame := field(1, []byte("hello"))
	batch, err := p.Parse(frame[:len(frame)-1])
	if err != nil || batch != nil {
		t.Fatalf("Parse() = %v, %v, want nil, nil", batch, err)
	}
	if p.Done() {
		t.Error("Done() = true inside a field")
	}

	batch, err = p.Parse(frame[len(frame)-1:])
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(batch) != 1 || string(batch[0].Value.([]byte)) != "hello" {
		t.Errorf("Parse() = %v, want hello", batch)
	}
	if !p.Done() || p.StatusSeen() {
		t.Errorf("Done() = %v, StatusSeen() = %v, want true, false", p.Done(), p.StatusSeen())
	}
}

func TestParser_Errors(t *testing.T) {
	varintField := protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 7)

	tests := []struct {
		name     string
		input    []byte
		opts     Options
		kind     stream.Kind
		position int
	}{
		{
			name:     "unknown_field",
			input:    join(field(1, []byte("m")), field(3, []byte("x"))),
			kind:     stream.KindProtocol,
			position: 3,
		},
		{
			name:     "wrong_wire_type",
			input:    varintField,
			kind:     stream.KindProtocol,
			position: 0,
		},
		{
			name:     "message_after_status",
			input:    join(field(2, nil), field(1, []byte("m"))),
			kind:     stream.KindProtocol,
			position: 2,
		},
		{
			name:     "second_status",
			input:    join(field(2, nil), field(2, nil)),
			kind:     stream.KindProtocol,
			position: 2,
		},
		{
			name:     "too_large",
			input:    field(1, bytes.Repeat([]byte("x"), 20)),
			opts:     Options{MaxMessageSize: 10},
			kind:     stream.KindProtocol,
			position: 0,
		},
		{
			name:     "field_number_zero",
			input:    []byte{0x02, 0x00},
			kind:     stream.KindStructural,
			position: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.opts)
			_, err := p.Parse(tt.input)

			var se *stream.Error
			if !errors.As(err, &se) {
				t.Fatalf("Parse() error = %v, want *stream.Error", err)
			}
			if se.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", se.Kind, tt.kind)
			}
			if se.Position != tt.position {
				t.Errorf("Position = %d, want %d", se.Position, tt.position)
			}
			if p.IsInputValid() {
				t.Error("IsInputValid() = true after failure")
			}

			if _, err := p.Parse(field(1, nil)); !errors.Is(err, stream.ErrInvalidStream) {
				t.Errorf("Parse() after failure = %v, want ErrInvalidStream", err)
			}
		})
	}
}

func TestParser_NoopOnlyIsEmpty(t *testing.T) {
	batch, err := New(Options{}).Parse(join(field(15, nil), field(15, []byte("pad"))))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if batch != nil {
		t.Errorf("Parse() = %v, want nil", batch)
	}
}
