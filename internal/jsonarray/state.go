package jsonarray

// streamState tracks the top-level array itself.
type streamState uint8

const (
	streamInit streamState = iota
	streamArrayOpen
	streamArrayEnd
	streamInvalid
)

// state governs how the next byte inside the top-level array is read.
type state uint8

const (
	stateValue      state = iota // a value must follow
	stateArrayOpen               // after '[': a value or ']'
	stateObjectOpen              // after '{': a key or '}'
	stateKeyStart                // after ',' inside an object
	stateKey                     // inside a key string
	stateKeyEnd                  // ':' must follow
	stateString                  // inside a string value
	stateLiteral                 // matching true, false or null
	stateNumber                  // inside a numeric literal
	stateValueEnd                // ',' or a closing bracket must follow
)

func (s state) String() string {
	switch s {
	case stateValue:
		return "value"
	case stateArrayOpen:
		return "array open"
	case stateObjectOpen:
		return "object open"
	case stateKeyStart:
		return "key start"
	case stateKey:
		return "key"
	case stateKeyEnd:
		return "key end"
	case stateString:
		return "string"
	case stateLiteral:
		return "literal"
	case stateNumber:
		return "number"
	case stateValueEnd:
		return "value end"
	default:
		return "unknown"
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return true
	}
	return false
}

// FirstNonSpace returns the index of the first non-whitespace byte, or -1.
func FirstNonSpace(s string) int {
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			return i
		}
	}
	return -1
}
