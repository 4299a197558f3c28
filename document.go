package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Document is an immutable JSON-like value: nil, bool, float64, string,
// []any or map[string]any (recursively of the same shapes). Documents are
// normalized on construction so that codec round trips compare equal, and are
// shared by reference between pipeline stages; a stage that needs a different
// value produces a new Document instead of mutating one.
type Document struct {
	v any
}

// NewDocument wraps a Go value as a Document, normalizing all numeric types
// to float64 and requiring string map keys. Panics on values that have no
// JSON-like representation; feeding arbitrary non-document data here is a
// programming error.
func NewDocument(v any) Document {
	return Document{normalizeValue(v)}
}

func Null() Document { return Document{} }

func (d Document) Value() any   { return d.v }
func (d Document) IsNull() bool { return d.v == nil }

// Field reads an object attribute. The second return value is false when the
// document is not an object or the attribute is absent.
func (d Document) Field(name string) (Document, bool) {
	obj, ok := d.v.(map[string]any)
	if !ok {
		return Document{}, false
	}
	v, ok := obj[name]
	if !ok {
		return Document{}, false
	}
	return Document{v}, true
}

func (d Document) Equal(other Document) bool {
	return d.Compare(other) == 0
}

// Compare orders documents by their canonical key encoding:
// null < false < true < numbers < strings < arrays < objects.
func (d Document) Compare(other Document) int {
	a := appendCanonicalKey(nil, d.v)
	b := appendCanonicalKey(nil, other.v)
	return Key(a).Compare(Key(b))
}

func (d Document) String() string {
	data, err := json.Marshal(d.v)
	if err != nil {
		return fmt.Sprintf("<unprintable document: %v>", err)
	}
	return string(data)
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case bool:
		return v
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		return v
	case []byte:
		return string(v)
	case Document:
		return v.v
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = normalizeValue(el)
		}
		return out
	case []Document:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = el.v
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			out[k] = normalizeValue(el)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			ks, ok := k.(string)
			if !ok {
				panic(fmt.Errorf("document object key is %T, not a string: %v", k, k))
			}
			out[ks] = normalizeValue(el)
		}
		return out
	default:
		panic(fmt.Errorf("value %T has no document representation: %v", v, v))
	}
}

func sortedObjectKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
