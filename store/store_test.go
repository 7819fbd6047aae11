package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/keepsake/chat"
	"github.com/chazu/keepsake/manifest"
	"github.com/chazu/keepsake/serial"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "test.db")
	}
	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t, Config{})

	mem := chat.NewMemory(5)
	mem.Add(&chat.UserMessage{Text: "persist me"})

	id, err := s.Save(mem)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty id")
	}

	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	loaded, ok := got.(*chat.Memory)
	if !ok {
		t.Fatalf("Load = %T", got)
	}
	if len(loaded.Messages) != 1 {
		t.Fatalf("loaded %d messages, want 1", len(loaded.Messages))
	}
	if msg := loaded.Messages[0].(*chat.UserMessage); msg.Text != "persist me" {
		t.Errorf("message = %q", msg.Text)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t, Config{})
	if _, err := s.Load("no-such-id"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	s := openTestStore(t, Config{})

	first, err := s.Save(map[string]any{"n": int64(1)})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := s.Save(map[string]any{"n": int64(2)})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if entries[0].Class != "Object" {
		t.Errorf("class = %q, want Object", entries[0].Class)
	}

	if err := s.Delete(first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(first); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("second Delete err = %v, want ErrSnapshotNotFound", err)
	}

	entries, err = s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != second {
		t.Errorf("entries after delete = %+v", entries)
	}
}

func TestDeniedType(t *testing.T) {
	s := openTestStore(t, Config{Deny: []string{"Memory"}})

	if _, err := s.Save(chat.NewMemory(3)); !errors.Is(err, ErrTypeDenied) {
		t.Errorf("Save err = %v, want ErrTypeDenied", err)
	}
	// Non-denied types still pass.
	if _, err := s.Save(&chat.UserMessage{Text: "ok"}); err != nil {
		t.Errorf("Save of allowed type failed: %v", err)
	}
}

func TestCompressedRecords(t *testing.T) {
	s := openTestStore(t, Config{Compress: true, CompressMin: 16})

	big := make([]any, 512)
	for i := range big {
		big[i] = "the same phrase over and over"
	}
	id, err := s.Save(big)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	items, ok := got.([]any)
	if !ok || len(items) != 512 {
		t.Fatalf("Load = %T len %d", got, len(items))
	}
}

func TestLoadWithExtras(t *testing.T) {
	// Writer process: chat types registered (init side effect).
	path := filepath.Join(t.TempDir(), "shared.db")
	writer := openTestStore(t, Config{Path: path})
	id, err := writer.Save(&chat.AssistantMessage{Text: "cross-process"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	writer.Close()

	// Reader process: a registry without the chat types.
	reader, err := Open(Config{Path: path}, serial.NewRegistry())
	if err != nil {
		t.Fatalf("Open reader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Load(id); !errors.Is(err, serial.ErrUnknownType) {
		t.Fatalf("Load err = %v, want ErrUnknownType", err)
	}
	got, err := reader.Load(id, chat.Descriptors()...)
	if err != nil {
		t.Fatalf("Load with extras failed: %v", err)
	}
	if msg, ok := got.(*chat.AssistantMessage); !ok || msg.Text != "cross-process" {
		t.Errorf("got %#v", got)
	}
}

func TestOpenManifest(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Manifest{
		Dir:      dir,
		Registry: manifest.RegistryConfig{Deny: []string{"Memory"}},
		Store:    manifest.StoreConfig{Driver: "sqlite", Path: "from-manifest.db"},
		Wire:     manifest.WireConfig{Compress: true},
	}

	s, err := OpenManifest(m, nil)
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Save(chat.NewMemory(1)); !errors.Is(err, ErrTypeDenied) {
		t.Errorf("deny list not applied: %v", err)
	}
}
