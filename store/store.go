// Package store persists named heap images in a SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fernlang/fern/image"
)

// ErrImageNotFound indicates the requested image doesn't exist.
var ErrImageNotFound = errors.New("image not found")

// Store handles SQLite storage for heap images.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Entry describes one stored image.
type Entry struct {
	Name      string
	RuntimeID string
	Size      int
	CreatedAt time.Time
}

// Open opens (creating if needed) an image store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS images (
		name TEXT PRIMARY KEY,
		runtime_id TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists an image under name, replacing any previous image with
// the same name.
func (s *Store) Save(name string, img *image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := img.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling image: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO images (name, runtime_id, data, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		name, img.RuntimeID, data,
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

// Load retrieves the named image.
func (s *Store) Load(name string) (*image.Image, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM images WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return image.Unmarshal(data)
}

// List returns every stored image, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT name, runtime_id, length(data), created_at FROM images ORDER BY created_at DESC, name")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.RuntimeID, &e.Size, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the named image.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM images WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n == 0 {
		return ErrImageNotFound
	}
	return nil
}
