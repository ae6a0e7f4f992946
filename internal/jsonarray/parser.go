package jsonarray

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/jacoelho/rpcstream/internal/stack"
	"github.com/jacoelho/rpcstream/internal/stream"
)

// Options configures a Parser.
type Options struct {
	// AllowCompactArrayFormat tolerates elided elements directly under the
	// top-level array, e.g. [1,,2] or a dangling comma before ']'.
	AllowCompactArrayFormat bool
	// DeliverRawString surfaces the source text of each element instead of
	// decoding it.
	DeliverRawString bool
}

// Parser is a stream.Parser for a single top-level JSON array.
type Parser struct {
	stream.Latch

	opts        Options
	streamState streamState
	state       state
	containers  *stack.Stack[byte]

	// pending holds the text of the element being scanned when the previous
	// input ended inside it.
	pending   string
	inElement bool
	start     int
	position  int
	elements  int
	// separator is the stream position of the latest top-level ','.
	separator  int
	separators int

	literal    string
	literalPos int
	escaped    bool
	hexDigits  int

	extra  string
	result []any
}

var errTrailingData = errors.New("invalid data after value")

var _ stream.Parser[any] = (*Parser)(nil)

func New(opts Options) *Parser {
	return &Parser{
		opts:       opts,
		containers: stack.NewWithCapacity[byte](8),
	}
}

// Parse consumes the next delta of the stream. It returns the elements
// completed by input, or nil when none completed.
func (p *Parser) Parse(input string) ([]any, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	if p.streamState == streamArrayEnd {
		p.extra = ""
		if i := FirstNonSpace(input); i >= 0 {
			return nil, p.fail(p.position+i, input, "extra input %q after array end", input[i])
		}
		p.position += len(input)
		return nil, nil
	}

	data := p.pending + input
	from := len(p.pending)
	if p.inElement {
		p.start = 0
	}

	consumed, err := p.scan(data, from, input)
	if err != nil {
		return nil, err
	}
	p.position += consumed

	if p.streamState == streamArrayEnd {
		p.extra = data[from+consumed:]
		p.position += len(p.extra)
		p.pending = ""
	} else if p.inElement {
		p.pending = data[p.start:]
	} else {
		p.pending = ""
	}

	return p.flush(), nil
}

// scan walks data from offset from and reports how many bytes of the new
// input were consumed. It stops right after the closing bracket of the
// top-level array.
func (p *Parser) scan(data string, from int, input string) (int, error) {
	base := p.position - from

	for i := from; i < len(data); i++ {
		c := data[i]

		if p.streamState == streamInit {
			if isSpace(c) {
				continue
			}
			if c != '[' {
				return 0, p.fail(base+i, input, "unexpected %q, expecting '['", c)
			}
			p.containers.Push('[')
			p.streamState = streamArrayOpen
			p.state = stateArrayOpen
			continue
		}

		switch p.state {
		case stateArrayOpen:
			if isSpace(c) {
				continue
			}
			if c == ']' {
				if done, err := p.close(data, i, c, base, input); err != nil || done {
					return i + 1 - from, err
				}
				continue
			}
			if c == ',' && p.elidable() {
				p.separate(base + i)
				p.state = stateValue
				continue
			}
			if err := p.beginValue(i, c, base, input); err != nil {
				return 0, err
			}

		case stateValue:
			if isSpace(c) {
				continue
			}
			if p.elidable() {
				if c == ',' {
					p.separate(base + i)
					continue
				}
				if c == ']' {
					if done, err := p.close(data, i, c, base, input); err != nil || done {
						return i + 1 - from, err
					}
					continue
				}
			}
			if err := p.beginValue(i, c, base, input); err != nil {
				return 0, err
			}

		case stateObjectOpen:
			if isSpace(c) {
				continue
			}
			switch c {
			case '}':
				if _, err := p.close(data, i, c, base, input); err != nil {
					return 0, err
				}
			case '"':
				p.state = stateKey
			default:
				return 0, p.fail(base+i, input, "unexpected %q, expecting object key or '}'", c)
			}

		case stateKeyStart:
			if isSpace(c) {
				continue
			}
			if c != '"' {
				return 0, p.fail(base+i, input, "unexpected %q, expecting object key", c)
			}
			p.state = stateKey

		case stateKey, stateString:
			if p.hexDigits > 0 {
				if !isHex(c) {
					return 0, p.fail(base+i, input, "invalid unicode escape digit %q", c)
				}
				p.hexDigits--
				continue
			}
			if p.escaped {
				p.escaped = false
				if c == 'u' {
					p.hexDigits = 4
					continue
				}
				if !isEscape(c) {
					return 0, p.fail(base+i, input, "invalid escape character %q", c)
				}
				continue
			}
			switch c {
			case '\\':
				p.escaped = true
			case '"':
				if p.state == stateKey {
					p.state = stateKeyEnd
				} else if err := p.endValue(data, i+1, base, input); err != nil {
					return 0, err
				}
			default:
				if j := strings.IndexAny(data[i+1:], "\"\\"); j >= 0 {
					i += j
				} else {
					i = len(data) - 1
				}
			}

		case stateKeyEnd:
			if isSpace(c) {
				continue
			}
			if c != ':' {
				return 0, p.fail(base+i, input, "unexpected %q, expecting ':'", c)
			}
			p.state = stateValue

		case stateLiteral:
			if c != p.literal[p.literalPos] {
				return 0, p.fail(base+i, input, "unexpected %q in literal %q", c, p.literal)
			}
			p.literalPos++
			if p.literalPos == len(p.literal) {
				if err := p.endValue(data, i+1, base, input); err != nil {
					return 0, err
				}
			}

		case stateNumber:
			if isNumberByte(c) {
				continue
			}
			if err := p.endValue(data, i, base, input); err != nil {
				return 0, err
			}
			i--

		case stateValueEnd:
			if isSpace(c) {
				continue
			}
			switch c {
			case ',':
				if top, _ := p.containers.Peek(); top == '{' {
					p.state = stateKeyStart
				} else {
					if p.containers.Size() == 1 {
						p.separate(base + i)
					}
					p.state = stateValue
				}
			case ']', '}':
				done, err := p.close(data, i, c, base, input)
				if err != nil {
					return 0, err
				}
				if done {
					return i + 1 - from, nil
				}
			default:
				return 0, p.fail(base+i, input, "unexpected %q, expecting ',' or closing bracket", c)
			}
		}
	}

	return len(data) - from, nil
}

// elidable reports whether a bare ',' or ']' may stand for an elided
// element at the current position.
func (p *Parser) elidable() bool {
	return p.opts.AllowCompactArrayFormat && p.containers.Size() == 1
}

// separate records a top-level ',' at stream position position.
func (p *Parser) separate(position int) {
	p.separator = position
	p.separators++
}

func (p *Parser) beginValue(i int, c byte, base int, input string) error {
	if p.containers.Size() == 1 {
		p.start = i
		p.inElement = true
		p.elements++
	}

	switch {
	case c == '{':
		p.containers.Push('{')
		p.state = stateObjectOpen
	case c == '[':
		p.containers.Push('[')
		p.state = stateArrayOpen
	case c == '"':
		p.state = stateString
	case c == 't':
		p.beginLiteral("true")
	case c == 'f':
		p.beginLiteral("false")
	case c == 'n':
		p.beginLiteral("null")
	case c == '-' || (c >= '0' && c <= '9'):
		p.state = stateNumber
	default:
		return p.fail(base+i, input, "unexpected %q, expecting a value", c)
	}
	return nil
}

func (p *Parser) beginLiteral(literal string) {
	p.literal = literal
	p.literalPos = 1
	p.state = stateLiteral
}

// close handles the closing bracket c at data[i]. It reports true when the
// top-level array was closed.
func (p *Parser) close(data string, i int, c byte, base int, input string) (bool, error) {
	open := byte('[')
	if c == '}' {
		open = '{'
	}

	top, ok := p.containers.Peek()
	if !ok || top != open {
		return false, p.fail(base+i, input, "unexpected %q, no matching %q", c, open)
	}
	p.containers.Pop()

	if p.containers.IsEmpty() {
		p.streamState = streamArrayEnd
		return true, nil
	}

	return false, p.endValue(data, i+1, base, input)
}

// endValue marks the value ending right before data[end] as complete and
// surfaces it when it sits directly under the top-level array.
func (p *Parser) endValue(data string, end int, base int, input string) error {
	p.state = stateValueEnd
	if p.containers.Size() != 1 {
		return nil
	}

	p.inElement = false
	raw := data[p.start:end]
	if p.opts.DeliverRawString {
		p.result = append(p.result, strings.Clone(raw))
		return nil
	}

	v, err := Decode(raw)
	if err != nil {
		p.streamState = streamInvalid
		return p.Trip(&stream.Error{
			Kind:     stream.KindStructural,
			Position: base + p.start,
			Input:    input,
			Detail:   "cannot decode element",
			Err:      err,
		})
	}
	p.result = append(p.result, v)
	return nil
}

// flush hands over the elements completed by the current call.
func (p *Parser) flush() []any {
	if len(p.result) == 0 {
		return nil
	}

	batch := p.result
	p.result = nil
	return batch
}

func (p *Parser) fail(position int, input string, format string, args ...any) error {
	p.streamState = streamInvalid
	return p.Trip(stream.Errorf(stream.KindStructural, position, input, format, args...))
}

// Done reports whether the closing bracket of the top-level array was seen.
func (p *Parser) Done() bool {
	return p.streamState == streamArrayEnd
}

// ExtraInput returns the input that followed the closing bracket of the
// top-level array within the call that closed it. It is counted by Position
// but not validated; later calls reject anything but whitespace.
func (p *Parser) ExtraInput() string {
	return p.extra
}

// Depth is the current nesting depth, counting the top-level array.
func (p *Parser) Depth() int {
	return p.containers.Size()
}

// Elements is the number of top-level elements begun so far.
func (p *Parser) Elements() int {
	return p.elements
}

// Separators is the number of top-level ',' consumed so far, including the
// commas of elided elements.
func (p *Parser) Separators() int {
	return p.separators
}

// SeparatorPosition is the stream position of the latest top-level ','.
func (p *Parser) SeparatorPosition() int {
	return p.separator
}

// Position is the number of input bytes consumed so far, including any
// extra input after the closing bracket.
func (p *Parser) Position() int {
	return p.position
}

// Decode decodes the text of exactly one JSON value, keeping numbers as
// json.Number. Anything after the value is an error.
func Decode(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}
