package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/theatre/internal/trace"
)

// marshalArgs converts task args to canonical JSON TEXT for storage.
func marshalArgs(args []any) (string, error) {
	data, err := trace.MarshalCanonical(append([]any{}, args...))
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back to task args.
//
// Integral numbers come back as int64 so that a stored run re-encodes to
// the same canonical form, and therefore the same digest.
func unmarshalArgs(data string) ([]any, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}

	args := make([]any, len(raw))
	for i, v := range raw {
		args[i] = normalizeNumbers(v)
	}
	return args, nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
