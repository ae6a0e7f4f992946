package output

import (
	"encoding/json"
	"io"

	"github.com/goccy/go-yaml"
)

// jsonLines writes one compact JSON object per line.
type jsonLines struct {
	enc *json.Encoder
}

func newJSONLines(w io.Writer) *jsonLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &jsonLines{enc: enc}
}

func (j *jsonLines) encode(r Record) error {
	return j.enc.Encode(r)
}

// yamlDocuments writes a "---" separated YAML document per record.
type yamlDocuments struct {
	w io.Writer
}

func newYAMLDocuments(w io.Writer) *yamlDocuments {
	return &yamlDocuments{w: w}
}

func (y *yamlDocuments) encode(r Record) error {
	payload, err := yaml.Marshal(r)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(y.w, "---\n"); err != nil {
		return err
	}
	_, err = y.w.Write(payload)
	return err
}
