package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Favorite is a named, saved RuntimeConfig snapshot a client can later
// restore.
type Favorite struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Config    RuntimeConfig `json:"config"`
	CreatedAt time.Time     `json:"created_at"`
}

// FavoritesStore is a simple list CRUD over named RuntimeConfig snapshots,
// serialized under its own writer lock (spec.md §5: "one writer lock for
// the favorites list").
type FavoritesStore struct {
	path string
	mu   sync.Mutex
	list []Favorite
}

// NewFavoritesStore loads the favorites list from path, or starts empty if
// the file doesn't exist or is corrupted.
func NewFavoritesStore(path string) *FavoritesStore {
	s := &FavoritesStore{path: path}
	if data, err := os.ReadFile(path); err == nil {
		var loaded []Favorite
		if err := json.Unmarshal(data, &loaded); err == nil {
			s.list = loaded
		}
	}
	return s
}

// List returns a copy of all saved favorites.
func (s *FavoritesStore) List() []Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Favorite, len(s.list))
	copy(out, s.list)
	return out
}

// Add appends a new favorite snapshot and persists the list.
func (s *FavoritesStore) Add(name string, cfg RuntimeConfig) (Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fav := Favorite{
		ID:        uuid.NewString(),
		Name:      name,
		Config:    cfg,
		CreatedAt: time.Now(),
	}
	s.list = append(s.list, fav)
	return fav, s.persistLocked()
}

// RemoveAt deletes the favorite at the given index (as displayed by List).
func (s *FavoritesStore) RemoveAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.list) {
		return fmt.Errorf("favorite index %d out of range (have %d)", index, len(s.list))
	}
	s.list = append(s.list[:index], s.list[index+1:]...)
	return s.persistLocked()
}

func (s *FavoritesStore) persistLocked() error {
	data, err := json.MarshalIndent(s.list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
