package state

import (
	"encoding/json"
	"strings"
)

// UnmarshalJSON decodes each binding independently so one malformed entry does
// not discard the rest. Entries without a key or action are skipped.
func (k *Keybindings) UnmarshalJSON(data []byte) error {
	var raw struct {
		Bindings []json.RawMessage `json:"bindings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.Bindings = make([]BindingRecord, 0, len(raw.Bindings))
	k.skipped = 0
	for _, item := range raw.Bindings {
		rec := BindingRecord{Enabled: true}
		if err := json.Unmarshal(item, &rec); err != nil {
			k.skipped++
			continue
		}
		rec.Key = strings.TrimSpace(rec.Key)
		rec.Action = strings.TrimSpace(rec.Action)
		if rec.Key == "" || rec.Action == "" {
			k.skipped++
			continue
		}
		if rec.Modifiers == nil {
			rec.Modifiers = []string{}
		}
		k.Bindings = append(k.Bindings, rec)
	}
	return nil
}

// Skipped reports how many persisted bindings were unreadable at load.
func (k Keybindings) Skipped() int {
	return k.skipped
}
