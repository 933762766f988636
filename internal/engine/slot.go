package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"lwectl/internal/fileutil"
)

// Slot is the persisted record of the current backend, shared between every
// controller process on the machine.
type Slot struct {
	PID        int       `json:"pid"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Executable string    `json:"executable"`
	Args       []string  `json:"args"`
}

// Alive reports whether the slot's process still exists.
func (s Slot) Alive() bool {
	return alive(s.PID)
}

func readSlot(path string) (*Slot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slot: %w", err)
	}
	var slot Slot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", path, err)
	}
	return &slot, nil
}

func writeSlot(path string, slot Slot) error {
	data, err := json.MarshalIndent(slot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode slot: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o600)
}

func removeSlot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove slot: %w", err)
	}
	return nil
}
