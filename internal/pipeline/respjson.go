package pipeline

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/model"
)

// firstJSONObject returns the first balanced top-level JSON object in s.
// Models wrap their answer in prose or code fences often enough that the
// parser scans rather than trusting the whole response to be JSON. Braces
// inside string literals do not count toward nesting.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// parseFields extracts the confirmation-note fields from a raw oracle
// answer. The whole object is taken or nothing is: a response without a
// complete parseable object yields an error, never partial fields.
func parseFields(response string) (*model.CNFields, error) {
	obj, ok := firstJSONObject(response)
	if !ok {
		return nil, eris.New("pipeline: no JSON object in oracle response")
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, eris.Wrap(err, "pipeline: unmarshal oracle response")
	}
	return model.CNFieldsFromMap(m), nil
}
