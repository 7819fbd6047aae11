package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a keepsake.toml
	dir := t.TempDir()
	tomlContent := `
[registry]
deny = ["LegacyPrompt", "ScratchBuffer"]

[store]
driver = "duckdb"
path = "snapshots.db"

[wire]
compress = true
compress-min = 2048
`
	if err := os.WriteFile(filepath.Join(dir, "keepsake.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Registry.Deny) != 2 {
		t.Errorf("deny count = %d, want 2", len(m.Registry.Deny))
	}
	if m.Registry.Deny[0] != "LegacyPrompt" {
		t.Errorf("deny[0] = %q, want LegacyPrompt", m.Registry.Deny[0])
	}
	if m.Store.Driver != "duckdb" {
		t.Errorf("store driver = %q, want duckdb", m.Store.Driver)
	}
	if m.Store.Path != "snapshots.db" {
		t.Errorf("store path = %q, want snapshots.db", m.Store.Path)
	}
	if !m.Wire.Compress {
		t.Error("wire compress = false, want true")
	}
	if m.Wire.CompressMin != 2048 {
		t.Errorf("wire compress-min = %d, want 2048", m.Wire.CompressMin)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[wire]
compress = false
`
	if err := os.WriteFile(filepath.Join(dir, "keepsake.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Store.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", m.Store.Driver)
	}
	if m.Store.Path != "keepsake.db" {
		t.Errorf("default path = %q, want keepsake.db", m.Store.Path)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[store]
path = "found.db"
`
	if err := os.WriteFile(filepath.Join(dir, "keepsake.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Store.Path != "found.db" {
		t.Errorf("store path = %q, want found.db", m.Store.Path)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no keepsake.toml exists")
	}
}

func TestDatabasePath(t *testing.T) {
	m := &Manifest{
		Dir:   "/app",
		Store: StoreConfig{Path: "snapshots.db"},
	}
	if got := m.DatabasePath(); got != "/app/snapshots.db" {
		t.Errorf("DatabasePath = %q, want /app/snapshots.db", got)
	}

	m.Store.Path = "/var/lib/keepsake.db"
	if got := m.DatabasePath(); got != "/var/lib/keepsake.db" {
		t.Errorf("DatabasePath = %q, want /var/lib/keepsake.db", got)
	}
}
