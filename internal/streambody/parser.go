// Package streambody parses the JSON StreamBody envelope used by streaming
// RPC responses:
//
//	[ [message1, ..., messageN] , status ]
//
// Either slot may be absent. Messages and the status are surfaced as
// stream.RawJSON tagged with their slot as soon as each one completes.
package streambody

import (
	"errors"

	"github.com/jacoelho/rpcstream/internal/jsonarray"
	"github.com/jacoelho/rpcstream/internal/stream"
)

type state uint8

const (
	stateInit state = iota
	stateArrayOpen
	stateMessages
	stateMessagesDone
	stateStatus
	stateArrayEnd
	stateInvalid
)

// Parser is a stream.Parser for the StreamBody envelope.
type Parser struct {
	stream.Latch

	state    state
	position int

	messages *jsonarray.Parser
	status   *jsonarray.Parser
	// nestedBase maps positions of the active nested parser to outer ones.
	nestedBase int

	result []stream.Message
}

var _ stream.Parser[stream.Message] = (*Parser)(nil)

func New() *Parser {
	return &Parser{}
}

// Parse consumes the next delta of the envelope.
func (p *Parser) Parse(input string) ([]stream.Message, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	rest := input
	for len(rest) > 0 {
		var err error
		rest, err = p.step(rest, input)
		if err != nil {
			p.state = stateInvalid
			return nil, p.Trip(err)
		}
	}

	if len(p.result) == 0 {
		return nil, nil
	}
	batch := p.result
	p.result = nil
	return batch, nil
}

// step consumes a prefix of rest and returns what is left.
func (p *Parser) step(rest, input string) (string, error) {
	switch p.state {
	case stateMessages:
		return p.feedMessages(rest)
	case stateStatus:
		return p.feedStatus(rest)
	}

	i := jsonarray.FirstNonSpace(rest)
	if i < 0 {
		p.position += len(rest)
		return "", nil
	}
	p.position += i
	c := rest[i]

	switch p.state {
	case stateInit:
		if c != '[' {
			return "", p.protocolError(input, "unexpected %q, expecting envelope '['", c)
		}
		p.state = stateArrayOpen

	case stateArrayOpen:
		switch c {
		case '[':
			p.messages = jsonarray.New(jsonarray.Options{
				AllowCompactArrayFormat: true,
				DeliverRawString:        true,
			})
			p.state = stateMessages
			p.nestedBase = p.position
			// the nested parser owns the opening bracket
			return rest[i:], nil
		case ',':
			if err := p.openStatus(); err != nil {
				return "", err
			}
		case ']':
			p.state = stateArrayEnd
		default:
			return "", p.protocolError(input, "unexpected %q, expecting message list", c)
		}

	case stateMessagesDone:
		switch c {
		case ',':
			if err := p.openStatus(); err != nil {
				return "", err
			}
		case ']':
			p.state = stateArrayEnd
		default:
			return "", p.protocolError(input, "unexpected %q after message list", c)
		}

	case stateArrayEnd:
		return "", p.protocolError(input, "extra input %q after envelope end", c)
	}

	p.position++
	return rest[i+1:], nil
}

func (p *Parser) feedMessages(rest string) (string, error) {
	batch, err := p.messages.Parse(rest)
	if err != nil {
		return "", p.chain(err)
	}

	for _, message := range batch {
		p.result = append(p.result, stream.Message{Slot: stream.SlotMessage, Value: rawJSON(message)})
	}

	if !p.messages.Done() {
		p.position += len(rest)
		return "", nil
	}

	extra := p.messages.ExtraInput()
	p.position += len(rest) - len(extra)
	p.state = stateMessagesDone
	return extra, nil
}

// openStatus starts the status sub-parser at the separating ','. It is
// primed with a synthetic '[' standing in for that ',' so the envelope's own
// closing bracket terminates it.
func (p *Parser) openStatus() error {
	p.status = jsonarray.New(jsonarray.Options{DeliverRawString: true})
	p.nestedBase = p.position
	if _, err := p.status.Parse("["); err != nil {
		return p.chain(err)
	}
	p.state = stateStatus
	return nil
}

// feedStatus feeds the status sub-parser. The status slot holds exactly one
// value, so a ',' after it is rejected as soon as it is seen.
func (p *Parser) feedStatus(rest string) (string, error) {
	batch, err := p.status.Parse(rest)
	if err != nil {
		return "", p.chain(err)
	}

	if p.status.Separators() > 0 {
		return "", stream.Errorf(stream.KindProtocol, p.nestedBase+p.status.SeparatorPosition(), rest,
			"more than one status in envelope")
	}

	for _, status := range batch {
		p.result = append(p.result, stream.Message{Slot: stream.SlotStatus, Value: rawJSON(status)})
	}

	if !p.status.Done() {
		p.position += len(rest)
		return "", nil
	}

	extra := p.status.ExtraInput()
	p.position += len(rest) - len(extra)
	if p.status.Elements() == 0 {
		// the ']' closing the envelope directly follows the ','
		return "", stream.Errorf(stream.KindProtocol, p.position-1, rest, "missing status after ','")
	}
	p.state = stateArrayEnd
	return extra, nil
}

// rawJSON tags the text delivered by a raw-string sub-parser.
func rawJSON(v any) stream.RawJSON {
	text, _ := v.(string)
	return stream.RawJSON(text)
}

// chain re-wraps a nested parser error with its outer stream position.
func (p *Parser) chain(err error) error {
	position := p.position
	var se *stream.Error
	if errors.As(err, &se) {
		position = p.nestedBase + se.Position
	}
	return stream.Chain(position, err)
}

func (p *Parser) protocolError(input string, format string, args ...any) error {
	return stream.Errorf(stream.KindProtocol, p.position, input, format, args...)
}

// Done reports whether the closing bracket of the envelope was seen.
func (p *Parser) Done() bool {
	return p.state == stateArrayEnd
}

// Position is the number of input bytes consumed so far, including bytes
// consumed by the nested parsers.
func (p *Parser) Position() int {
	return p.position
}
