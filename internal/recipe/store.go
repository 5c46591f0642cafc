package recipe

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"webdriver-fleet-mcp/internal/fleet"
)

// Store persists recipes as one JSON file per recipe under a directory.
type Store struct {
	dir string
}

// NewStore builds a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

var unsafeFilenameChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Sanitise maps any character that is not alphanumeric, `-`, or `_` to
// `_`. It is idempotent: Sanitise(Sanitise(s)) == Sanitise(s).
func Sanitise(name string) string {
	return unsafeFilenameChar.ReplaceAllString(name, "_")
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, Sanitise(name)+".json")
}

// Create validates and writes r to disk under its sanitised name.
func (s *Store) Create(r Recipe) error {
	if err := Validate(r); err != nil {
		return err
	}
	data, err := Serialize(r)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(r.Name), data, 0o644)
}

// Get loads the recipe named name.
func (s *Store) Get(name string) (Recipe, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Recipe{}, fleet.NewError(fleet.InvalidRecipe, err, "no recipe named %q", name)
		}
		return Recipe{}, err
	}
	return Parse(data)
}

// List returns the names of every stored recipe, in the sanitised
// filenames' directory order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := s.Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		names = append(names, r.Name)
	}
	return names, nil
}

// Delete removes the recipe named name. Deleting a nonexistent recipe is
// not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
