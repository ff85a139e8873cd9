package overrides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var htmlQuotes = strings.NewReplacer("&amp;quot;", `"`, "&quot;", `"`)

// DecodeJSON undoes HTML quote escaping applied by form inputs.
func DecodeJSON(s string) string {
	return htmlQuotes.Replace(s)
}

// ParseList parses a JSON array override into T. Empty input yields nil.
// Unknown fields are rejected so misspelled keys surface before submission.
func ParseList[T any](s string) ([]T, error) {
	s = strings.TrimSpace(DecodeJSON(s))
	if s == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var out []T
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing %s: unexpected data after list", s)
	}
	return out, nil
}
