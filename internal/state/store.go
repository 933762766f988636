package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"lwectl/internal/fileutil"
	"lwectl/internal/logging"
)

// Persister saves a state document.
type Persister interface {
	Save(cfg *Config) error
}

// Loader reads the persisted document back. ok is false when no usable
// document is on disk.
type Loader interface {
	LoadExisting() (cfg *Config, ok bool)
}

var errMalformed = errors.New("state document malformed")

// Store reads and writes the state document at one path.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore returns a store for path. A nil logger discards diagnostics.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.NewComponentLogger(logger, "state")}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. It never fails: a missing or malformed file yields
// defaults, and repairs made while validating are logged as warnings.
func (s *Store) Load() *Config {
	cfg, err := s.read()
	switch {
	case err == nil:
		return cfg
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("state document absent; using defaults", logging.String("path", s.path))
	case errors.Is(err, errMalformed):
		logging.WarnWithContext(s.logger, "state document malformed; using defaults", "state_load_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or remove the state file; the next save overwrites it"),
			logging.String(logging.FieldImpact, "saved settings are ignored for this session"),
		)
	default:
		logging.WarnWithContext(s.logger, "state document unreadable; using defaults", "state_load_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state file"),
			logging.String(logging.FieldImpact, "saved settings are ignored for this session"),
		)
	}
	return Default()
}

// LoadExisting reads the document only when one is on disk and decodes.
func (s *Store) LoadExisting() (*Config, bool) {
	cfg, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("state reload skipped", logging.String("path", s.path), logging.Error(err))
		}
		return nil, false
	}
	return cfg, true
}

func (s *Store) read() (*Config, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	cfg, issues, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	for _, issue := range issues {
		logging.WarnWithContext(s.logger, "state value repaired", "state_value_repaired",
			logging.String("detail", issue),
			logging.String(logging.FieldErrorHint, "re-apply the setting if the default is not wanted"),
			logging.String(logging.FieldImpact, "setting reverted to its default"),
		)
	}
	return cfg, nil
}

// Decode merges data over the defaults, conforms it to the schema, and
// validates it. It fails only when data is not a JSON object.
func Decode(data []byte) (*Config, []string, error) {
	loaded, err := decodeMap(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	defaults, err := toMap(Default())
	if err != nil {
		return nil, nil, fmt.Errorf("encode defaults: %w", err)
	}
	merged := Merge(defaults, deepCopyMap(loaded))

	var issues []string
	schema := schemaMap()
	conform(merged, schema, "", &issues)

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, nil, fmt.Errorf("encode merged state: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(encoded, cfg); err != nil {
		return nil, nil, fmt.Errorf("decode merged state: %w", err)
	}
	cfg.unknown = extractUnknown(merged, schema, "")
	issues = append(issues, cfg.validate()...)
	return cfg, issues, nil
}

// Encode renders cfg as the persisted document, unknown keys included.
func Encode(cfg *Config) ([]byte, error) {
	snapshot := cfg.Clone()
	snapshot.fillNil()
	typed, err := toMap(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	doc := Merge(snapshot.Unknown(), typed)
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes cfg atomically, creating parent directories as needed. The
// error is returned for the caller to report; in-memory state stays authoritative.
func (s *Store) Save(cfg *Config) error {
	if cfg == nil {
		return errors.New("save state: nil document")
	}
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save state %s: %w", s.path, err)
	}
	return nil
}

// Handle owns the live document and serializes every access to it.
//
// Other lwectl processes write the same file, so Update starts from the
// document on disk. A live copy holding changes that failed to save is kept
// instead until a save succeeds.
type Handle struct {
	mu     sync.Mutex
	cfg    *Config
	store  Persister
	dirty  bool
	logger *slog.Logger
}

// NewHandle wraps cfg. store may be nil for purely in-memory use.
func NewHandle(cfg *Config, store Persister, logger *slog.Logger) *Handle {
	if cfg == nil {
		cfg = Default()
	}
	return &Handle{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "state")}
}

// Snapshot returns a deep copy of the current document.
func (h *Handle) Snapshot() *Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.Clone()
}

// View runs fn with the live document under the lock without persisting.
// fn must not retain cfg.
func (h *Handle) View(fn func(cfg *Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.cfg)
}

// Reload replaces the live document with the persisted one and reports
// whether it did.
func (h *Handle) Reload() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloadLocked()
}

// Update reloads the persisted document, applies fn and saves the result. A
// save failure is logged and returned; the mutation is kept in memory either way.
func (h *Handle) Update(fn func(cfg *Config)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadLocked()
	fn(h.cfg)
	return h.saveLocked()
}

// Save persists the current document.
func (h *Handle) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveLocked()
}

func (h *Handle) reloadLocked() bool {
	if h.dirty {
		return false
	}
	loader, ok := h.store.(Loader)
	if !ok {
		return false
	}
	cfg, ok := loader.LoadExisting()
	if !ok {
		return false
	}
	h.cfg = cfg
	return true
}

func (h *Handle) saveLocked() error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(h.cfg); err != nil {
		h.dirty = true
		logging.WarnWithContext(h.logger, "state save failed; keeping in-memory state", "state_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the state directory is writable"),
			logging.String(logging.FieldImpact, "changes are lost when lwectl exits"),
		)
		return err
	}
	h.dirty = false
	return nil
}
