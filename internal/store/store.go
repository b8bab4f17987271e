// Package store persists memory records per project. Each project owns one
// sqlite file holding records as JSON documents keyed by key, plus a
// project_keys table tracking the full key set. All enumeration goes
// through project_keys: a record missing from the index is invisible.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/alucardeht/membank/internal/model"
)

type Store struct {
	baseDir  string
	mu       sync.Mutex
	projects map[string]*projectDB
}

type projectDB struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a store rooted at baseDir. Project databases are opened
// lazily on first use.
func New(baseDir string) *Store {
	return &Store{
		baseDir:  baseDir,
		projects: make(map[string]*projectDB),
	}
}

func (s *Store) project(projectID string) (*projectDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[projectID]; ok {
		return p, nil
	}

	dir := filepath.Join(s.baseDir, projectID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "memory.db"))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	p := &projectDB{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.projects[projectID] = p
	return p, nil
}

func (p *projectDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_keys (
		key TEXT PRIMARY KEY
	);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// InitProject provisions the backing store for a project. Safe to call
// repeatedly.
func (s *Store) InitProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("projectId must not be empty")
	}
	_, err := s.project(projectID)
	return err
}

// Write validates and persists the full record under its key,
// overwriting any previous record with the same key. The key is added
// to the project index if absent.
func (s *Store) Write(ctx context.Context, projectID string, mem *model.Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	if mem.ProjectID != projectID {
		return fmt.Errorf("record projectId %q does not match %q", mem.ProjectID, projectID)
	}

	p, err := s.project(projectID)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT OR IGNORE INTO project_keys (key) VALUES (?)", mem.Key); err != nil {
		tx.Rollback()
		return err
	}

	_, err = tx.Exec(
		"INSERT INTO records (key, doc) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET doc = excluded.doc",
		mem.Key, string(doc),
	)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Read returns the record under key, or ok=false when absent. A
// successful read bumps the access count and refreshes updatedAt, and
// that mutation is persisted before returning.
func (s *Store) Read(ctx context.Context, projectID, key string) (*model.Memory, bool, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mem, err := p.fetch(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if mem == nil {
		return nil, false, nil
	}

	mem.Metadata.AccessCount++
	mem.UpdatedAt = model.Now()

	doc, err := json.Marshal(mem)
	if err != nil {
		return nil, false, fmt.Errorf("encode record: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, "UPDATE records SET doc = ? WHERE key = ?", string(doc), key); err != nil {
		return nil, false, err
	}

	return mem, true, nil
}

// Touch persists the read side effect for a record: the access count
// increments and updatedAt refreshes, without loading the document.
// Returns false when the key is not indexed.
func (s *Store) Touch(ctx context.Context, projectID, key string) (bool, error) {
	p, err := s.project(projectID)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.db.ExecContext(ctx,
		`UPDATE records SET doc = json_set(doc,
			'$.metadata.accessCount', COALESCE(json_extract(doc, '$.metadata.accessCount'), 0) + 1,
			'$.updatedAt', ?)
		WHERE key = ? AND key IN (SELECT key FROM project_keys)`,
		model.Now(), key,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Peek returns the record under key without the access-count side
// effect of Read. The sync engine uses it to keep ids stable across
// re-imports.
func (s *Store) Peek(ctx context.Context, projectID, key string) (*model.Memory, bool, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	mem, err := p.fetch(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return mem, mem != nil, nil
}

func (p *projectDB) fetch(ctx context.Context, key string) (*model.Memory, error) {
	var doc string
	err := p.db.QueryRowContext(ctx,
		"SELECT r.doc FROM project_keys k JOIN records r ON r.key = k.key WHERE k.key = ?",
		key,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mem := &model.Memory{}
	if err := json.Unmarshal([]byte(doc), mem); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", key, err)
	}
	return mem, nil
}

// Query holds the conjunctive search filters. A zero field excludes
// nothing on that axis.
type Query struct {
	Text string
	Tags []string
	Type model.MemoryType
}

// Search loads the project index, fetches every indexed record, and
// applies the filters conjunctively: type exact-match, tags any-match,
// text case-insensitive substring over key + content + tags. Results
// are unordered; ranking is the dispatcher's job.
func (s *Store) Search(ctx context.Context, projectID string, q Query) ([]*model.Memory, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx,
		"SELECT r.doc FROM project_keys k JOIN records r ON r.key = k.key",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Memory
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}

		mem := &model.Memory{}
		if err := json.Unmarshal([]byte(doc), mem); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		if matches(mem, q) {
			results = append(results, mem)
		}
	}

	return results, rows.Err()
}

func matches(mem *model.Memory, q Query) bool {
	if q.Type != "" && mem.Type != q.Type {
		return false
	}

	if len(q.Tags) > 0 {
		any := false
		for _, tag := range q.Tags {
			if mem.HasTag(tag) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	if q.Text != "" {
		haystack := strings.ToLower(mem.Key + " " + mem.Content + " " + strings.Join(mem.Tags, " "))
		if !strings.Contains(haystack, strings.ToLower(q.Text)) {
			return false
		}
	}

	return true
}

// List returns all records of the project, optionally restricted to one
// type.
func (s *Store) List(ctx context.Context, projectID string, memType model.MemoryType) ([]*model.Memory, error) {
	return s.Search(ctx, projectID, Query{Type: memType})
}

// UpdateFields carries the partial fields memory_update may change. Nil
// pointers leave the current value untouched.
type UpdateFields struct {
	Content       *string
	Tags          []string
	Relationships *model.Relationships
}

// Update shallow-merges the supplied fields into the existing record,
// refreshes updatedAt and persists. A missing key returns ok=false with
// no error.
func (s *Store) Update(ctx context.Context, projectID, key string, fields UpdateFields) (*model.Memory, bool, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mem, err := p.fetch(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if mem == nil {
		return nil, false, nil
	}

	if fields.Content != nil {
		mem.Content = *fields.Content
	}
	if fields.Tags != nil {
		mem.Tags = fields.Tags
	}
	if fields.Relationships != nil {
		mem.Relationships = *fields.Relationships
	}
	mem.UpdatedAt = model.Now()

	doc, err := json.Marshal(mem)
	if err != nil {
		return nil, false, fmt.Errorf("encode record: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, "UPDATE records SET doc = ? WHERE key = ?", string(doc), key); err != nil {
		return nil, false, err
	}

	return mem, true, nil
}

// Close closes every open project database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, p := range s.projects {
		// Checkpoint failure is not critical; the DB closes either way.
		p.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		if err := p.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.projects, id)
	}
	return firstErr
}
