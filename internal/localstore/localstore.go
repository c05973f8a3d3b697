// Package localstore persists the small bits of device state the app
// needs between runs: the auth token, the verified phone number, and the
// last known location.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// State is everything persisted on the device.
type State struct {
	Token        string    `json:"token"`
	Phone        string    `json:"phone"`
	LastLocation *Location `json:"last_location,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store reads and writes State at a fixed path.
type Store struct {
	path string
}

// New creates a store at an explicit path.
func New(path string) *Store {
	return &Store{path: path}
}

// Default places the state file under the user config dir.
func Default() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return New(filepath.Join(dir, "plateful", "state.json")), nil
}

// Load reads the persisted state. A missing file is not an error; it
// returns a zero State.
func (s *Store) Load() (*State, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

// Save writes the state atomically (write temp, then rename).
func (s *Store) Save(st *State) error {
	st.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Clear removes the state file. Missing is fine.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}
