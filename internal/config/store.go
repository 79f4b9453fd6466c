package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const (
	AppDir        = "tunneler"
	FileName      = "tunnels.yaml"
	LocalFileName = "tunnels.yaml"
)

// Store reads and writes one YAML tunnel file. Access is serialised within
// the process by a mutex. Writers also hold a sibling lock file and replace
// the file atomically; readers take no file lock.
type Store struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// GlobalPath is the per-user config file, e.g. ~/.config/tunneler/tunnels.yaml.
func GlobalPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(base, AppDir, FileName), nil
}

// LocalPath is the per-directory config file in the working directory.
func LocalPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}
	return filepath.Join(wd, LocalFileName), nil
}

func NewStore(pathOverride string) (*Store, error) {
	path := pathOverride
	if path == "" {
		p, err := GlobalPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &Store{
		path: abs,
		lock: flock.New(abs + ".lock"),
	}, nil
}

func (s *Store) Path() string { return s.path }

// Exists reports whether the backing file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the parsed file, or an empty Config when the file is missing.
// The result is not validated; see Config.Validate.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadUnlocked()
}

func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockExclusive(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.saveUnlocked(cfg)
}

// Update loads the file, applies fn, validates the result and saves it, all
// under the exclusive lock.
func (s *Store) Update(fn func(*Config) error) error {
	return s.UpdateOver(New(), fn)
}

// UpdateOver is Update for a file layered on top of base: the result is
// validated merged with base, so a local group may name a global tunnel.
// Only the file's own content is written.
func (s *Store) UpdateOver(base Config, fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockExclusive(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	cfg, err := s.loadUnlocked()
	if err != nil {
		return err
	}

	if err := fn(&cfg); err != nil {
		return err
	}
	cfg.normalize()
	merged := Merge(base, cfg)
	merged.normalize()
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return s.saveUnlocked(cfg)
}

// Init writes the starter configuration. An existing file is only replaced
// when force is set.
func (s *Store) Init(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockExclusive(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	if s.Exists() && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", s.path)
	}
	if err := writeFileAtomic(s.path, []byte(Starter), 0o600); err != nil {
		return fmt.Errorf("atomic write config: %w", err)
	}
	return nil
}

func (s *Store) lockExclusive() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	return nil
}

func (s *Store) loadUnlocked() (Config, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := New()
	if len(bytes.TrimSpace(b)) > 0 {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", s.path, err)
		}
	}
	cfg.normalize()
	return cfg, nil
}

func (s *Store) saveUnlocked(cfg Config) error {
	cfg.normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("atomic write config: %w", err)
	}
	return nil
}
