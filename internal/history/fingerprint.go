package history

import (
	"encoding/json"
	"sort"
	"strings"
)

// Fingerprint canonicalizes a tool call's JSON argument string so that two
// calls differing only in key order or insignificant whitespace produce the
// same fingerprint. Falls back to the raw
// trimmed string if the arguments aren't valid JSON.
func Fingerprint(rawArgs string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(rawArgs), &v); err != nil {
		return strings.TrimSpace(rawArgs)
	}
	var b strings.Builder
	canonicalize(&b, v)
	return b.String()
}

func canonicalize(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			canonicalize(b, val[k])
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, e)
		}
		b.WriteByte(']')
	default:
		enc, _ := json.Marshal(val)
		b.Write(enc)
	}
}
