package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	keyGroups   = "--groups"
	keyBindings = "--keybindings.bindings"
)

// Merge folds loaded into defaults key by key and returns defaults. When both
// sides hold nested records the merge recurses; any other value in loaded
// overwrites. Keys absent from defaults are added. defaults is modified in place.
func Merge(defaults, loaded map[string]any) map[string]any {
	if defaults == nil {
		defaults = make(map[string]any, len(loaded))
	}
	for key, value := range loaded {
		if dv, ok := defaults[key].(map[string]any); ok {
			if lv, ok := value.(map[string]any); ok {
				Merge(dv, lv)
				continue
			}
		}
		defaults[key] = value
	}
	return defaults
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// toMap renders cfg's typed fields as a generic document.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return decodeMap(data)
}

func decodeMap(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return out, nil
}

// schemaMap is the shape of a document with every optional field present.
func schemaMap() map[string]any {
	full := Default()
	full.Sound.Volume = IntVolume(0)
	m, err := toMap(full)
	if err != nil {
		panic(fmt.Sprintf("state schema: %v", err))
	}
	return m
}

// conform coerces doc in place toward schema. Wrong-typed values are replaced
// with the schema default and reported; numeric identifiers become strings.
func conform(doc, schema map[string]any, prefix string, issues *[]string) {
	for key, sv := range schema {
		dv, present := doc[key]
		if !present {
			continue
		}
		path := joinPath(prefix, key)
		doc[key] = conformValue(path, dv, sv, issues)
	}
}

func conformValue(path string, dv, sv any, issues *[]string) any {
	switch s := sv.(type) {
	case map[string]any:
		m, ok := dv.(map[string]any)
		if !ok {
			*issues = append(*issues, fmt.Sprintf("%s: expected an object; reset to default", path))
			return deepCopyValue(s)
		}
		if path == keyGroups {
			conformGroups(m, issues)
			return m
		}
		conform(m, s, path, issues)
		return m
	case bool:
		if _, ok := dv.(bool); ok {
			return dv
		}
		*issues = append(*issues, fmt.Sprintf("%s: expected true/false; reset to default", path))
		return s
	case string:
		switch v := dv.(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		}
		*issues = append(*issues, fmt.Sprintf("%s: expected a string; reset to default", path))
		return s
	case json.Number:
		switch dv.(type) {
		case json.Number, string, nil:
			return dv
		}
		*issues = append(*issues, fmt.Sprintf("%s: expected a number; dropped", path))
		return nil
	case nil:
		switch dv.(type) {
		case string, nil:
			return dv
		}
		*issues = append(*issues, fmt.Sprintf("%s: expected a path or null; cleared", path))
		return nil
	case []any:
		if path == keyBindings {
			if _, ok := dv.([]any); ok {
				return dv
			}
			*issues = append(*issues, fmt.Sprintf("%s: expected a list; reset to default", path))
			return deepCopyValue(s)
		}
		return conformIDs(path, dv, issues)
	}
	return dv
}

func conformGroups(groups map[string]any, issues *[]string) {
	for name, ids := range groups {
		if strings.TrimSpace(name) == "" {
			delete(groups, name)
			*issues = append(*issues, fmt.Sprintf("%s: unnamed group dropped", keyGroups))
			continue
		}
		if _, ok := ids.([]any); !ok {
			*issues = append(*issues, fmt.Sprintf("%s.%s: expected a list; group emptied", keyGroups, name))
		}
		groups[name] = conformIDs(joinPath(keyGroups, name), ids, issues)
	}
}

// conformIDs normalizes a list of item identifiers to unique, non-empty strings
// in their original order.
func conformIDs(path string, v any, issues *[]string) []any {
	list, ok := v.([]any)
	if !ok {
		if v != nil {
			*issues = append(*issues, fmt.Sprintf("%s: expected a list; reset to empty", path))
		}
		return []any{}
	}
	seen := make([]string, 0, len(list))
	out := make([]any, 0, len(list))
	for _, item := range list {
		var id string
		switch t := item.(type) {
		case string:
			id = strings.TrimSpace(t)
		case json.Number:
			id = t.String()
		default:
			*issues = append(*issues, fmt.Sprintf("%s: non-scalar identifier dropped", path))
			continue
		}
		if id == "" || slices.Contains(seen, id) {
			continue
		}
		seen = append(seen, id)
		out = append(out, id)
	}
	return out
}

// extractUnknown returns the parts of doc that schema does not describe.
func extractUnknown(doc, schema map[string]any, prefix string) map[string]any {
	out := map[string]any{}
	for key, dv := range doc {
		sv, known := schema[key]
		if !known {
			out[key] = deepCopyValue(dv)
			continue
		}
		path := joinPath(prefix, key)
		sm, isMap := sv.(map[string]any)
		dm, docMap := dv.(map[string]any)
		if !isMap || !docMap || len(sm) == 0 || path == keyGroups {
			continue
		}
		if sub := extractUnknown(dm, sm, path); len(sub) > 0 {
			out[key] = sub
		}
	}
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
