package stream

// Slot numbers of the two-slot StreamBody envelope. SlotNoop is only ever
// seen on the protobuf wire and is never surfaced.
const (
	SlotMessage = 1
	SlotStatus  = 2
	SlotNoop    = 15
)

// Message is a decoded element tagged with the envelope slot it arrived in.
type Message struct {
	Slot  int
	Value any
}

// RawJSON is the undecoded source text of a JSON value. Parsers that deliver
// raw text tag it with this type so consumers can tell it apart from a
// decoded JSON string.
type RawJSON string

// IsStatus reports whether the message carries the trailing status.
func (m Message) IsStatus() bool {
	return m.Slot == SlotStatus
}

// Parser consumes text deltas.
type Parser[T any] interface {
	// Parse returns the elements completed by input, or nil when more data
	// is needed.
	Parse(input string) ([]T, error)
	IsInputValid() bool
	// ErrorMessage is empty while the input is valid.
	ErrorMessage() string
}

// BinaryParser consumes byte deltas, typically produced by a decoding stage
// such as base64.
type BinaryParser[T any] interface {
	Parse(input []byte) ([]T, error)
	IsInputValid() bool
	ErrorMessage() string
}

// Completer is implemented by parsers that recognise the natural end of their
// stream, such as the closing bracket of an array or a trailing status.
type Completer interface {
	Done() bool
}
