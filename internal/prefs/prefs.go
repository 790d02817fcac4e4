// Package prefs persists remembered operator choices as a flat
// key=value file, independent of any single run.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store reads and writes the preference file. Writes are atomic
// (temp file + rename); concurrent runs resolve last-writer-wins,
// which is acceptable since preferences are convenience, not
// correctness.
type Store struct {
	Path string
}

// NewStore returns a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads all preferences. A missing file yields an empty map.
func (s *Store) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	prefs := make(map[string]string)
	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		prefs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return prefs, nil
}

// Get returns one preference value, or "" when unset.
func (s *Store) Get(key string) (string, error) {
	prefs, err := s.Load()
	if err != nil {
		return "", err
	}
	return prefs[key], nil
}

// Set records a preference, creating the file if needed.
func (s *Store) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\n") {
		return fmt.Errorf("preference value must be a single line")
	}

	prefs, err := s.Load()
	if err != nil {
		return err
	}
	prefs[key] = value
	return s.save(prefs)
}

// Unset removes a preference. Removing an absent key is a no-op.
func (s *Store) Unset(key string) error {
	prefs, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := prefs[key]; !ok {
		return nil
	}
	delete(prefs, key)
	return s.save(prefs)
}

func (s *Store) save(prefs map[string]string) error {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", k, prefs[k])
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create preference dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if _, err := tmp.WriteString(sb.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("preference key must not be empty")
	}
	if strings.ContainsAny(key, "=\n #") {
		return fmt.Errorf("invalid preference key %q", key)
	}
	return nil
}
