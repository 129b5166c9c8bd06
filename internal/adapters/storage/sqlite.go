package storage

// sqlite.go: blob store en SQLite.
//
// Estrategia:
//   - `blobs`: UNA fila por key (UPSERT). Cada ejecución reescribe ~9 blobs.
//   - Cache en memoria de hashes: evita writes si el contenido no cambió.
//     Entre dos ejecuciones sin trades nuevos casi nada cambia salvo
//     last_run.json, así que la mayoría de los Put no tocan disco.

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/predictstats/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
    key          TEXT PRIMARY KEY,
    data         BLOB     NOT NULL,
    content_type TEXT     NOT NULL,
    updated_at   DATETIME NOT NULL
);
`

// SQLiteStore implementa ports.BlobStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db     *sql.DB
	hashes map[string][sha256.Size]byte // key → hash del último contenido guardado
	mu     sync.Mutex
}

var (
	_ ports.BlobStore  = (*SQLiteStore)(nil)
	_ ports.BlobLister = (*SQLiteStore)(nil)
)

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada, aplica el
// schema y precarga la cache de hashes.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, hashes: make(map[string][sha256.Size]byte)}
	if err := s.warmCache(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Get devuelve el contenido de key; found=false si no existe.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage.SQLiteStore.Get: %s: %w", key, err)
	}
	return data, true, nil
}

// Put hace upsert de key. Si el contenido es idéntico al último guardado no escribe.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	sum := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.hashes[key]; ok && prev == sum {
		// mismo contenido: solo se refresca updated_at para que List refleje
		// la última ejecución.
		if _, err := s.db.ExecContext(ctx, `UPDATE blobs SET updated_at = ? WHERE key = ?`, now, key); err != nil {
			return fmt.Errorf("storage.SQLiteStore.Put: touch %s: %w", key, err)
		}
		return nil
	}

	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, data, content_type, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data         = excluded.data,
			content_type = excluded.content_type,
			updated_at   = excluded.updated_at`,
		key, data, ContentType(key), now,
	)
	if err != nil {
		return fmt.Errorf("storage.SQLiteStore.Put: %s: %w", key, err)
	}
	s.hashes[key] = sum
	return nil
}

// List devuelve los blobs guardados ordenados por key.
func (s *SQLiteStore) List(ctx context.Context) ([]ports.BlobInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(data), content_type, updated_at
		FROM blobs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteStore.List: %w", err)
	}
	defer rows.Close()

	var out []ports.BlobInfo
	for rows.Next() {
		var info ports.BlobInfo
		if err := rows.Scan(&info.Key, &info.Size, &info.ContentType, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage.SQLiteStore.List: scan: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close cierra la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// warmCache carga los hashes de lo que ya está en disco.
func (s *SQLiteStore) warmCache(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, data FROM blobs`)
	if err != nil {
		return fmt.Errorf("storage.SQLiteStore.warmCache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("storage.SQLiteStore.warmCache: scan: %w", err)
		}
		s.hashes[key] = sha256.Sum256(data)
	}
	return rows.Err()
}
