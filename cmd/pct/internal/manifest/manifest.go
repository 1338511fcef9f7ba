package manifest

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// ErrNotFound is returned when no artifact is recorded for a template
var ErrNotFound = errors.New("artifact not recorded")

// goose keeps its dialect and base FS in package state
var gooseMu sync.Mutex

// Artifact records one generated unit
type Artifact struct {
	Template     string
	Unit         string
	Parent       string
	SourceHash   string
	SettingsHash string // fingerprint of the settings the unit was generated with
	OutputPath   string
	Constructors int
	Blocks       int
	Sentinels    int
	CompiledAt   time.Time
}

// Store is the build manifest, a sqlite database of generated units
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the manifest at path, creating it and applying pending
// migrations as needed
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("manifest migration failed: %w", err)
	}
	return nil
}

// Path returns the database file
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put records an artifact, replacing any earlier record of its template
func (s *Store) Put(ctx context.Context, a Artifact) error {
	if a.CompiledAt.IsZero() {
		a.CompiledAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (template, unit, parent, source_hash, settings_hash, output_path, constructors, blocks, sentinels, compiled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template) DO UPDATE SET
			unit = excluded.unit,
			parent = excluded.parent,
			source_hash = excluded.source_hash,
			settings_hash = excluded.settings_hash,
			output_path = excluded.output_path,
			constructors = excluded.constructors,
			blocks = excluded.blocks,
			sentinels = excluded.sentinels,
			compiled_at = excluded.compiled_at`,
		a.Template, a.Unit, a.Parent, a.SourceHash, a.SettingsHash, a.OutputPath,
		a.Constructors, a.Blocks, a.Sentinels, a.CompiledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", a.Template, err)
	}
	return nil
}

// Get returns the record of a template, or ErrNotFound
func (s *Store) Get(ctx context.Context, template string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT template, unit, parent, source_hash, settings_hash, output_path, constructors, blocks, sentinels, compiled_at
		FROM artifacts WHERE template = ?`, template)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", template, err)
	}
	return a, nil
}

// List returns every record ordered by template name
func (s *Store) List(ctx context.Context) ([]Artifact, error) {
	return s.query(ctx, `
		SELECT template, unit, parent, source_hash, settings_hash, output_path, constructors, blocks, sentinels, compiled_at
		FROM artifacts ORDER BY template`)
}

// Children returns the records of templates extending parent
func (s *Store) Children(ctx context.Context, parent string) ([]Artifact, error) {
	return s.query(ctx, `
		SELECT template, unit, parent, source_hash, settings_hash, output_path, constructors, blocks, sentinels, compiled_at
		FROM artifacts WHERE parent = ? ORDER BY template`, parent)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// Delete forgets a template. Deleting an unknown template is not an error.
func (s *Store) Delete(ctx context.Context, template string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE template = ?`, template); err != nil {
		return fmt.Errorf("failed to delete %s: %w", template, err)
	}
	return nil
}

// UpToDate reports whether template was last built from the same source
// with the same settings and its output file still exists
func (s *Store) UpToDate(ctx context.Context, template, sourceHash, settingsHash string) (bool, error) {
	a, err := s.Get(ctx, template)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if a.SourceHash != sourceHash || a.SettingsHash != settingsHash {
		return false, nil
	}
	if _, err := os.Stat(a.OutputPath); err != nil {
		return false, nil
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*Artifact, error) {
	var a Artifact
	var compiledAt string
	err := row.Scan(&a.Template, &a.Unit, &a.Parent, &a.SourceHash, &a.SettingsHash, &a.OutputPath,
		&a.Constructors, &a.Blocks, &a.Sentinels, &compiledAt)
	if err != nil {
		return nil, err
	}

	a.CompiledAt, err = time.Parse(time.RFC3339Nano, compiledAt)
	if err != nil {
		return nil, fmt.Errorf("bad compiled_at %q: %w", compiledAt, err)
	}
	return &a, nil
}
