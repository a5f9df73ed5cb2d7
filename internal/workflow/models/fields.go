package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Field is one application form entry. The schema is driven by
// category/subcategory and is opaque to the workflow core.
type Field struct {
	Name  string `json:"field_name"`
	Value string `json:"field_value"`
}

// Fields is the ordered list of application form entries.
//
// Legacy clients persist fields in two shapes: an array of
// {field_name, field_value} pairs, or a flat key/value object. The decoder
// accepts both and normalizes to the array form so business logic never
// branches on shape. Object input is ordered by key for determinism since
// JSON objects carry no order.
type Fields []Field

func (f *Fields) UnmarshalJSON(data []byte) error {
	// Fast path: the canonical array shape.
	var pairs []Field
	if err := json.Unmarshal(data, &pairs); err == nil {
		*f = pairs
		return nil
	}

	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("document fields must be an array of pairs or a flat object: %w", err)
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Fields, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Name: k, Value: flat[k]})
	}
	*f = out
	return nil
}

// MarshalJSON always emits the canonical array form, never the flat object.
func (f Fields) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Field(f))
}
