package output

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/jacoelho/rpcstream/internal/jsonarray"
	"github.com/jacoelho/rpcstream/internal/stream"
)

const (
	KindMessage = "message"
	KindStatus  = "status"
)

var ErrDecode = errors.New("cannot decode message")

// Record is the rendered form of one message.
type Record struct {
	Kind string `json:"kind" yaml:"kind"`
	// Value is the decoded JSON value, or the base64 payload of a binary message.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`
	// Binary marks Value as an opaque payload.
	Binary bool    `json:"binary,omitempty" yaml:"binary,omitempty"`
	Status *Status `json:"status,omitempty" yaml:"status,omitempty"`
}

// Status is a google.rpc.Status like summary of the trailing status.
type Status struct {
	Code     string            `json:"code" yaml:"code"`
	Message  string            `json:"message,omitempty" yaml:"message,omitempty"`
	Details  []string          `json:"details,omitempty" yaml:"details,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Decode turns a parsed message into a record. Raw JSON text is decoded,
// values already decoded by the parser are kept as they are, binary status
// payloads are read as google.rpc.Status and gRPC-Web trailers are mapped
// onto their status code.
func Decode(m stream.Message) (Record, error) {
	kind := KindMessage
	if m.IsStatus() {
		kind = KindStatus
	}

	switch v := m.Value.(type) {
	case stream.RawJSON:
		value, err := jsonarray.Decode(string(v))
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
		}
		return jsonRecord(kind, normalize(value)), nil

	case []byte:
		if kind == KindStatus {
			st, err := protoStatus(v)
			if err != nil {
				return Record{}, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
			}
			return Record{Kind: kind, Status: st}, nil
		}
		return Record{Kind: kind, Value: base64.StdEncoding.EncodeToString(v), Binary: true}, nil

	case map[string]string:
		return Record{Kind: kind, Status: trailerStatus(v)}, nil

	default:
		return jsonRecord(kind, normalize(v)), nil
	}
}

func jsonRecord(kind string, value any) Record {
	if kind == KindStatus {
		if st, ok := jsonStatus(value); ok {
			return Record{Kind: kind, Status: st}
		}
	}
	return Record{Kind: kind, Value: value}
}

// normalize replaces json.Number by int64 or float64 so values work with
// JSONPath comparisons and YAML encoding.
func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for key, item := range v {
			v[key] = normalize(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return value
	}
}

// jsonStatus recognises {"code": N, "message": "..."} objects.
func jsonStatus(value any) (*Status, bool) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}

	var code int64
	switch c := object["code"].(type) {
	case int64:
		code = c
	case float64:
		code = int64(c)
	default:
		return nil, false
	}

	st := &Status{Code: codeName(code)}
	st.Message, _ = object["message"].(string)
	if details, ok := object["details"].([]any); ok {
		for _, detail := range details {
			if d, ok := detail.(map[string]any); ok {
				if typeURL, ok := d["@type"].(string); ok {
					st.Details = append(st.Details, typeURL)
				}
			}
		}
	}
	return st, true
}

func protoStatus(payload []byte) (*Status, error) {
	var pb spb.Status
	if err := proto.Unmarshal(payload, &pb); err != nil {
		return nil, err
	}

	st := &Status{
		Code:    codeName(int64(pb.GetCode())),
		Message: pb.GetMessage(),
	}
	for _, detail := range pb.GetDetails() {
		st.Details = append(st.Details, detail.GetTypeUrl())
	}
	return st, nil
}

func trailerStatus(trailers map[string]string) *Status {
	st := &Status{Code: codes.Unknown.String()}
	if raw, ok := trailers["grpc-status"]; ok {
		if code, err := strconv.ParseInt(raw, 10, 32); err == nil {
			st.Code = codeName(code)
		}
	}
	st.Message = trailers["grpc-message"]

	for key, value := range trailers {
		if key == "grpc-status" || key == "grpc-message" {
			continue
		}
		if st.Metadata == nil {
			st.Metadata = make(map[string]string)
		}
		st.Metadata[key] = value
	}
	return st
}

func codeName(code int64) string {
	if code < 0 || code > int64(^uint32(0)) {
		return strconv.FormatInt(code, 10)
	}
	return codes.Code(uint32(code)).String()
}
