package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDir is the ram-disk mount the compiler reads from.
const DefaultDir = "/tmp/rdisk"

var (
	ErrWrite       = errors.New("scratch: write failed")
	ErrInvalidName = errors.New("scratch: invalid artifact name")
)

// WriteError reports an artifact that could not be materialized.
type WriteError struct {
	Name string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("scratch: write %s (%s): %v", e.Name, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrWrite) match any WriteError.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Artifact is one file staged for a single tool invocation.
type Artifact struct {
	Name string
	Path string
}

// Store is a directory-scoped artifact area. The directory must already exist.
type Store struct {
	root string
}

// New constructs a store rooted at dir. An empty dir falls back to DefaultDir.
func New(dir string) *Store {
	resolved := strings.TrimSpace(dir)
	if resolved == "" {
		resolved = DefaultDir
	}
	return &Store{root: resolved}
}

// Dir returns the configured root.
func (s *Store) Dir() string {
	return s.root
}

// Write creates or overwrites name with content.
func (s *Store) Write(name string, content string) (Artifact, error) {
	p, err := s.Path(name)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return Artifact{}, &WriteError{Name: name, Path: p, Err: err}
	}
	return Artifact{Name: name, Path: p}, nil
}

// Remove deletes name if present. Removing an absent artifact is not an error.
func (s *Store) Remove(name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("scratch: remove %s: %w", name, err)
	}
	return nil
}

// List returns staged artifact names with the given prefix, sorted.
func (s *Store) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scratch: list %s: %w", s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if prefix == "" || strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves name inside the root. Names must be plain file names.
func (s *Store) Path(name string) (string, error) {
	rel := strings.TrimSpace(name)
	if rel == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidName, rel)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, rel))
	if filepath.Dir(p) != root {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, rel, s.root)
	}
	return p, nil
}

// Writable checks that the root exists and accepts a probe file.
func (s *Store) Writable() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return &WriteError{Name: ".", Path: s.root, Err: err}
	}
	if !info.IsDir() {
		return &WriteError{Name: ".", Path: s.root, Err: fmt.Errorf("not a directory")}
	}
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return &WriteError{Name: ".", Path: s.root, Err: err}
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
