package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrVolumeRange is returned for volumes outside [0,100].
var ErrVolumeRange = errors.New("volume out of range")

// Volume is the optional engine volume. The persisted token is kept verbatim
// so a bad value surfaces where it is used instead of failing the whole load.
type Volume struct {
	raw json.RawMessage
}

// IntVolume returns a Volume holding n.
func IntVolume(n int) *Volume {
	return &Volume{raw: json.RawMessage(strconv.Itoa(n))}
}

// Int parses the volume as an integer in [0,100].
func (v *Volume) Int() (int, error) {
	if v == nil || len(v.raw) == 0 {
		return 0, errors.New("volume not set")
	}
	token := strings.TrimSpace(string(v.raw))
	if strings.HasPrefix(token, `"`) {
		var s string
		if err := json.Unmarshal(v.raw, &s); err != nil {
			return 0, fmt.Errorf("volume %s: %w", token, err)
		}
		token = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("volume %q is not an integer", token)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%w: %d", ErrVolumeRange, n)
	}
	return n, nil
}

// String returns the persisted token.
func (v *Volume) String() string {
	if v == nil {
		return ""
	}
	return string(v.raw)
}

func (v Volume) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Volume) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}
