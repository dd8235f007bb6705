package storage

import "encoding/json"

// marshalJSON is a panic-free helper for building jsonb column values;
// every domain struct field it's used on is already a
// json-serializable map/slice, so a marshal error here would indicate
// a programming bug, not a runtime condition callers should handle.
func marshalJSON(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func unmarshalJSONMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func unmarshalJSONStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var s []string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}

// unmarshalInto decodes raw JSON into any typed destination (a slice of
// structs, typically), leaving dest untouched on empty/invalid input
// rather than erroring — every call site already has a zero-value
// fallback appropriate for a freshly-created row.
func unmarshalInto[T any](raw []byte, dest *T) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dest)
}

func unmarshalJSONAny(raw []byte) []any {
	if len(raw) == 0 {
		return nil
	}
	var s []any
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}
