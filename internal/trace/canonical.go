package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainTrace prefixes trace digests so they cannot collide with other
// hashed content.
const DomainTrace = "theatre/trace/v1"

// MarshalCanonical produces canonical JSON for trace content.
//
// Differences from json.Marshal:
//  1. Object keys are sorted
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalised
//  4. Values of other types are rendered with fmt.Sprint as strings, so any
//     argument a workflow accepts can be exported
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return writeCanonicalString(buf, fmt.Sprint(val))
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// ToMap converts a task tree to the generic form used for canonical JSON
// and for export. Unset ticks are omitted.
func ToMap(t *Task) map[string]any {
	m := map[string]any{
		"method": t.method,
		"args":   append([]any{}, t.args...),
		"idling": t.Idling(),
	}
	if t.producer != nil {
		m["producer"] = t.producer.Name()
	}
	if start, ok := t.StartTick(); ok {
		m["start"] = start
	}
	if finish, ok := t.FinishTick(); ok {
		m["finish"] = finish
	}

	subTasks := t.SubTasks()
	children := make([]any, len(subTasks))
	for i, child := range subTasks {
		children[i] = ToMap(child)
	}
	m["sub_tasks"] = children
	return m
}

// Digest returns a hex SHA-256 over the canonical JSON of the trees,
// prefixed with DomainTrace and a null separator. Two runs with the same
// digest produced identical traces.
func Digest(tasks []*Task) (string, error) {
	trees := make([]any, len(tasks))
	for i, t := range tasks {
		trees[i] = ToMap(t)
	}

	data, err := MarshalCanonical(trees)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
