// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/pagetutor/internal/layout"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("document not found")
	ErrDatabaseError = errors.New("database error")
	ErrCorruptPage   = errors.New("stored page is corrupt")
)

// DocumentInfo describes a stored document.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed document library. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates the library database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path, enc: enc, dec: dec}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.db.Close()
}

// SaveDocument validates and stores doc. A document with the same name is
// replaced in place and keeps its id.
func (s *Store) SaveDocument(ctx context.Context, doc *layout.Document) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if doc.Name == "" {
		return "", errors.New("document name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE name = ?", doc.Name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (id, name, page_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, doc.Name, len(doc.Pages), now, now)
	case err == nil:
		if _, err = tx.ExecContext(ctx, "DELETE FROM pages WHERE document_id = ?", id); err != nil {
			break
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM pages_fts WHERE document_id = ?", id); err != nil {
			break
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET page_count = ?, updated_at = ? WHERE id = ?",
			len(doc.Pages), now, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	for _, p := range doc.Pages {
		blob, err := s.encodeRuns(p.Runs)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pages (document_id, number, width, height, runs) VALUES (?, ?, ?, ?, ?)",
			id, p.Number, p.Width, p.Height, blob); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pages_fts (document_id, number, text) VALUES (?, ?, ?)",
			id, p.Number, p.Text()); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return id, nil
}

// LoadIndex reads a document's pages into a layout index.
func (s *Store) LoadIndex(ctx context.Context, id string) (*layout.Index, error) {
	info, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT number, width, height, runs FROM pages WHERE document_id = ? ORDER BY number", id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	idx := layout.NewIndex(info.Name)
	for rows.Next() {
		var (
			p    layout.Page
			blob []byte
		)
		if err := rows.Scan(&p.Number, &p.Width, &p.Height, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		if p.Runs, err = s.decodeRuns(blob); err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Number, err)
		}
		if err := idx.Put(p); err != nil {
			return nil, fmt.Errorf("page %d: %w: %v", p.Number, ErrCorruptPage, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return idx, nil
}

// Document returns the metadata of one document.
func (s *Store) Document(ctx context.Context, id string) (DocumentInfo, error) {
	return s.queryOne(ctx, "WHERE id = ?", id)
}

// FindByName returns the document with the given name.
func (s *Store) FindByName(ctx context.Context, name string) (DocumentInfo, error) {
	return s.queryOne(ctx, "WHERE name = ?", name)
}

// Resolve finds a document by id, then by name.
func (s *Store) Resolve(ctx context.Context, ref string) (DocumentInfo, error) {
	info, err := s.Document(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return s.FindByName(ctx, ref)
	}
	return info, err
}

// ListDocuments returns every document, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, page_count, created_at, updated_at FROM documents ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its pages.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages_fts WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(r rowScanner) (DocumentInfo, error) {
	var (
		info             DocumentInfo
		created, updated int64
	)
	if err := r.Scan(&info.ID, &info.Name, &info.Pages, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentInfo{}, ErrNotFound
		}
		return DocumentInfo{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	info.CreatedAt = time.Unix(created, 0)
	info.UpdatedAt = time.Unix(updated, 0)
	return info, nil
}

func (s *Store) queryOne(ctx context.Context, where string, arg any) (DocumentInfo, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, page_count, created_at, updated_at FROM documents "+where, arg)
	return scanInfo(row)
}

func (s *Store) encodeRuns(runs []layout.TextRun) ([]byte, error) {
	if runs == nil {
		runs = []layout.TextRun{}
	}
	data, err := json.Marshal(runs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}
	return s.enc.EncodeAll(data, nil), nil
}

func (s *Store) decodeRuns(blob []byte) ([]layout.TextRun, error) {
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPage, err)
	}
	var runs []layout.TextRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPage, err)
	}
	return runs, nil
}
