package recipe

import (
	"os"
	"testing"
)

func TestSanitiseIsIdempotent(t *testing.T) {
	cases := []string{"smoke test!", "login/flow", "cross-browser_compare", "a b c"}
	for _, c := range cases {
		once := Sanitise(c)
		twice := Sanitise(once)
		if once != twice {
			t.Errorf("Sanitise not idempotent for %q: %q vs %q", c, once, twice)
		}
	}
}

func TestStoreCreateGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	r := Recipe{
		Name:     "smoke test",
		Version:  "1",
		Browsers: []BrowserSpec{AutoBrowser},
		Steps:    []RecipeStep{{Action: "navigate", Arguments: map[string]interface{}{"url": "https://example.com"}}},
	}
	if err := store.Create(r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get("smoke test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != r.Name {
		t.Errorf("expected name %q, got %q", r.Name, got.Name)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "smoke test" {
		t.Errorf("expected one recipe listed, got %v", names)
	}

	if err := store.Delete("smoke test"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("smoke test"); err == nil {
		t.Error("expected error getting deleted recipe")
	}
}

func TestStoreRejectsInvalidRecipeOnCreate(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Create(Recipe{}); err == nil {
		t.Fatal("expected validation error for empty recipe")
	}
}

func TestStoreDeleteNonexistentIsNoop(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Delete("never-existed"); err != nil {
		t.Errorf("expected nil error deleting nonexistent recipe, got %v", err)
	}
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/recipes"
	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory created, got %v", err)
	}
}
