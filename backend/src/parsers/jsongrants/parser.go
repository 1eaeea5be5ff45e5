// backend/src/parsers/jsongrants/parser.go
package jsongrants

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/processors"
	"github.com/username/esopfolio/backend/src/security/validation"
)

type GrantJSONParser struct{}

func NewParser() *GrantJSONParser {
	return &GrantJSONParser{}
}

// Parse accepts either a top-level array of grant objects or an object with a
// "records" array. Numbers keep their literal text; null means blank.
func (p *GrantJSONParser) Parse(file io.Reader) (*models.ParsedUpload, error) {
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON upload: %w", err)
	}
	body = bytes.TrimSpace(body)
	out := &models.ParsedUpload{Format: "json", Records: []models.RawRecord{}}
	if len(body) == 0 {
		return out, nil
	}

	var objects []map[string]any
	if body[0] == '{' {
		var wrapper struct {
			Records []map[string]any `json:"records"`
		}
		if err := decode(body, &wrapper); err != nil {
			return nil, err
		}
		objects = wrapper.Records
	} else if err := decode(body, &objects); err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	unknown := make(map[string]bool)
	for i, obj := range objects {
		var raw models.RawRecord
		for key, value := range obj {
			text, err := stringify(value)
			if err != nil {
				return nil, fmt.Errorf("record %d field '%s': %w", i+1, key, err)
			}
			name, ok := processors.CanonicalFieldName(key)
			if !ok {
				unknown[key] = true
				continue
			}
			present[name] = true
			raw.SetField(name, strings.TrimSpace(validation.StripUnprintable(text)))
		}
		out.Records = append(out.Records, raw)
	}

	for _, f := range processors.RecognizedFields {
		if present[f] {
			out.Header = append(out.Header, f)
		}
	}
	extra := make([]string, 0, len(unknown))
	for k := range unknown {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	out.Header = append(out.Header, extra...)
	return out, nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode JSON upload: %w", err)
	}
	return nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return fmt.Sprintf("%t", t), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
