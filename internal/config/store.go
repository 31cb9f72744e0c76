package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/user/quickbuttons/internal/types"
)

// Validator checks a button's parameters against its type. The handler
// registry satisfies it.
type Validator interface {
	ValidateButton(b types.Button) error
}

// Warning ties a validation problem to the button it was found on.
type Warning struct {
	ButtonID types.ButtonID
	Err      error
}

func (w Warning) Error() string {
	return fmt.Sprintf("button %s: %v", w.ButtonID, w.Err)
}

// Loaded is the outcome of Store.Load.
type Loaded struct {
	Doc      *Document
	Warnings []Warning

	// Created is set when the file was missing or empty and defaults were
	// written in its place.
	Created bool
	// Migrated is set when the document was upgraded from an older version.
	Migrated    bool
	FromVersion int

	// BackupPath is where a corrupt file was moved before defaults were
	// written; Cause is the parse or schema error.
	BackupPath string
	Cause      error

	// PersistErr reports that writing defaults or the migrated document
	// failed. The returned Doc is still usable.
	PersistErr error
}

// Recovered reports whether Load replaced a corrupt file with defaults.
func (l *Loaded) Recovered() bool { return l.BackupPath != "" }

// Store owns the configuration file. A single mutex serialises loads, saves
// and the read-modify-write sequences run through Mutate.
type Store struct {
	path      string
	validator Validator
	now       func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithValidator enables per-button validation warnings on Load.
func WithValidator(v Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithClock overrides the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// DefaultPath is <user config dir>/QuickButtons/config.json, falling back to
// config.json in the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(dir, "QuickButtons", "config.json")
}

// Load reads, checks and migrates the document. Parse and schema failures are
// absorbed: the file is moved aside and defaults are returned. Only a failed
// migration or an unreadable file is returned as an error.
func (s *Store) Load() (*Loaded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		return s.freshLocked(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", s.path, err)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return s.recoverLocked(fmt.Errorf("%w: parse: %w", ErrCorrupt, err)), nil
	}
	if dec.More() {
		return s.recoverLocked(fmt.Errorf("%w: trailing data after document", ErrCorrupt)), nil
	}
	if err := checkLegacy(raw); err != nil {
		return s.recoverLocked(fmt.Errorf("%w: %w", ErrCorrupt, err)), nil
	}

	obj := raw.(map[string]any)
	version := documentVersion(obj)
	migrated, err := migrate(obj, version)
	if err != nil {
		slog.Error("config migration failed", "path", s.path, "from_version", version, "error", err)
		return nil, err
	}
	if err := checkCurrent(migrated); err != nil {
		return s.recoverLocked(fmt.Errorf("%w: %w", ErrCorrupt, err)), nil
	}

	doc, err := decodeDocument(migrated)
	if err != nil {
		return s.recoverLocked(fmt.Errorf("%w: %w", ErrCorrupt, err)), nil
	}

	loaded := &Loaded{Doc: doc, FromVersion: version}
	if version < CurrentSchemaVersion {
		loaded.Migrated = true
		if err := s.keepPreMigrationCopy(data, version); err != nil {
			slog.Warn("could not keep pre-migration copy", "path", s.path, "error", err)
		}
		if err := s.saveLocked(doc); err != nil {
			loaded.PersistErr = err
		}
		slog.Info("config migrated", "path", s.path, "from_version", version, "to_version", doc.SchemaVersion)
	}
	loaded.Warnings = s.validate(doc)
	return loaded, nil
}

func decodeDocument(v any) (*Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) freshLocked() *Loaded {
	doc := Defaults()
	loaded := &Loaded{Doc: doc, Created: true, FromVersion: CurrentSchemaVersion}
	if err := s.saveLocked(doc); err != nil {
		slog.Warn("could not write default config", "path", s.path, "error", err)
		loaded.PersistErr = err
	}
	return loaded
}

func (s *Store) recoverLocked(cause error) *Loaded {
	loaded := &Loaded{Doc: Defaults(), Cause: cause, FromVersion: CurrentSchemaVersion}
	backup, err := s.backupLocked()
	if err != nil {
		// Leave the original in place rather than overwrite it.
		slog.Error("config corrupt and backup failed, not overwriting", "path", s.path, "cause", cause, "error", err)
		loaded.PersistErr = fmt.Errorf("%w: backup corrupt config: %w", ErrPersistFailed, err)
		return loaded
	}
	loaded.BackupPath = backup
	slog.Warn("config corrupt, restored defaults", "path", s.path, "backup_path", backup, "cause", cause)
	if err := s.saveLocked(loaded.Doc); err != nil {
		loaded.PersistErr = err
	}
	return loaded
}

func (s *Store) validate(doc *Document) []Warning {
	if s.validator == nil {
		return nil
	}
	var warnings []Warning
	for _, b := range doc.Buttons {
		if err := s.validator.ValidateButton(b); err != nil {
			warnings = append(warnings, Warning{ButtonID: b.ID, Err: err})
		}
	}
	return warnings
}

// Save writes doc atomically: the bytes go to a sibling temp file which is
// synced and then renamed over the target. The stored schema version never
// goes below CurrentSchemaVersion.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc *Document) error {
	if doc.SchemaVersion < CurrentSchemaVersion {
		doc.SchemaVersion = CurrentSchemaVersion
	}
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("%w: marshal config: %w", ErrPersistFailed, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// BackupCorrupt moves the current file to a timestamped sibling and returns
// the new path.
func (s *Store) BackupCorrupt() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

func (s *Store) backupLocked() (string, error) {
	base := s.path + ".corrupt-" + s.now().UTC().Format("20060102T150405Z")
	backup := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(backup); errors.Is(err, fs.ErrNotExist) {
			break
		}
		backup = base + "-" + strconv.Itoa(i)
	}
	if err := os.Rename(s.path, backup); err != nil {
		return "", fmt.Errorf("backup config: %w", err)
	}
	return backup, nil
}

func (s *Store) keepPreMigrationCopy(data []byte, version int) error {
	path := fmt.Sprintf("%s.v%d.bak", s.path, version)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, data, 0644)
}

// Mutate runs fn under the store lock. When fn returns a non-nil document it
// is saved before the lock is released, so no other mutation or save can
// interleave with it. A save failure is returned wrapped in ErrPersistFailed.
func (s *Store) Mutate(fn func() (*Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := fn()
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	return s.saveLocked(doc)
}

// Read runs fn under the store lock.
func (s *Store) Read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
