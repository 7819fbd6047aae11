// Package store persists serialized snapshots in an embedded SQL database.
// Each snapshot is one wire record keyed by a generated id, so a payload
// written by one process can be reloaded by another — including one that
// needs the extra-descriptors hint to know the payload's types.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/keepsake/manifest"
	"github.com/chazu/keepsake/serial"
	"github.com/chazu/keepsake/wire"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/tliron/commonlog/simple"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("keepsake.store")

// ErrSnapshotNotFound indicates the requested snapshot doesn't exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrTypeDenied indicates the snapshot's root type name is on the
// manifest's deny list.
var ErrTypeDenied = errors.New("type denied by manifest")

// Config controls how a Store opens and frames records.
type Config struct {
	// Driver is the database/sql driver name: "sqlite" (default) or
	// "duckdb".
	Driver string

	// Path is the database file location.
	Path string

	// Compress enables zstd compression of stored records.
	Compress bool

	// CompressMin is the minimum record size worth compressing; zero
	// means wire.DefaultCompressMin.
	CompressMin int

	// Deny lists root type names refused at save and load time.
	Deny []string
}

// Store handles snapshot persistence.
type Store struct {
	db     *sql.DB
	reg    *serial.Registry
	pack   wire.PackOptions
	denied map[string]bool
	mu     sync.Mutex
}

// Open opens (creating if needed) the snapshot database described by cfg.
// A nil registry means the process-wide default.
func Open(cfg Config, reg *serial.Registry) (*Store, error) {
	if reg == nil {
		reg = serial.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite" {
		// Set busy timeout for concurrent access
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		record BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	denied := make(map[string]bool, len(cfg.Deny))
	for _, name := range cfg.Deny {
		denied[name] = true
	}

	log.Infof("opened snapshot store %s (%s)", cfg.Path, driver)

	return &Store{
		db:     db,
		reg:    reg,
		pack:   wire.PackOptions{Compress: cfg.Compress, CompressMin: cfg.CompressMin},
		denied: denied,
	}, nil
}

// OpenManifest opens the store described by a loaded keepsake.toml.
func OpenManifest(m *manifest.Manifest, reg *serial.Registry) (*Store, error) {
	return Open(Config{
		Driver:      m.Store.Driver,
		Path:        m.DatabasePath(),
		Compress:    m.Wire.Compress,
		CompressMin: m.Wire.CompressMin,
		Deny:        m.Registry.Deny,
	}, reg)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save serializes v and persists it, returning the generated snapshot id.
func (s *Store) Save(v any) (string, error) {
	class := s.rootClass(v)
	if s.denied[class] {
		return "", fmt.Errorf("%w: %q", ErrTypeDenied, class)
	}

	text, err := s.reg.Serialize(v)
	if err != nil {
		return "", fmt.Errorf("serializing snapshot: %w", err)
	}
	record, err := wire.Pack([]byte(text), s.pack)
	if err != nil {
		return "", fmt.Errorf("packing snapshot: %w", err)
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT INTO snapshots (id, class, record, created_at) VALUES (?, ?, ?, ?)",
		id, class, record, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("saving snapshot: %w", err)
	}

	log.Debugf("saved snapshot %s (%s, %d bytes)", id, class, len(record))
	return id, nil
}

// Load reconstructs the snapshot stored under id. extra supplies
// call-scoped descriptors for type names the registry lacks.
func (s *Store) Load(id string, extra ...*serial.Descriptor) (any, error) {
	s.mu.Lock()
	var class string
	var record []byte
	err := s.db.QueryRow(
		"SELECT class, record FROM snapshots WHERE id = ?", id,
	).Scan(&class, &record)
	s.mu.Unlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", id, err)
	}
	if s.denied[class] {
		return nil, fmt.Errorf("%w: %q", ErrTypeDenied, class)
	}

	text, err := wire.Unpack(record)
	if err != nil {
		return nil, fmt.Errorf("unpacking snapshot %s: %w", id, err)
	}
	v, err := s.reg.Deserialize(string(text), extra...)
	if err != nil {
		return nil, fmt.Errorf("deserializing snapshot %s: %w", id, err)
	}

	log.Debugf("loaded snapshot %s (%s)", id, class)
	return v, nil
}

// Delete removes the snapshot stored under id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}

	log.Debugf("deleted snapshot %s", id)
	return nil
}

// Entry describes one stored snapshot.
type Entry struct {
	ID        string
	Class     string
	CreatedAt time.Time
}

// List returns all stored snapshots, oldest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT id, class, created_at FROM snapshots ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Class, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// rootClass names the wire type the root of v will serialize under, or ""
// for scalar roots.
func (s *Store) rootClass(v any) string {
	desc, err := s.reg.ResolveInstance(v)
	if err != nil {
		return ""
	}
	return desc.Name
}
