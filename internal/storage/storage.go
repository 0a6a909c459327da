// Package storage provides the SQLite-backed export ledger.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/powerprices/internal/models"
)

const tableExports = "exports"

var ErrNotFound = errors.New("export not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxExports int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/powerprices/data.db.
func New(maxExports int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "powerprices", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxExports: maxExports}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exports (
			id          TEXT PRIMARY KEY,
			view        TEXT NOT NULL,
			granularity TEXT NOT NULL,
			countries   TEXT NOT NULL DEFAULT '[]',
			row_count   INTEGER NOT NULL,
			csv         BLOB,
			object_url  TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// SaveExport inserts an export and drops the oldest ones beyond the cap.
func (s *Storage) SaveExport(e *models.Export) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid export: %w", err)
	}
	countries, err := sonic.MarshalString(e.Countries)
	if err != nil {
		return fmt.Errorf("failed to encode countries: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := builder().Insert(tableExports).
		Columns(exportCols...).
		Values(
			e.ID, string(e.View), string(e.Granularity), countries,
			e.RowCount, e.CSV, e.ObjectURL, e.CreatedAt.UnixNano(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}

	if err := rotate(tx, s.maxExports); err != nil {
		return fmt.Errorf("failed to enforce export cap: %w", err)
	}

	return tx.Commit()
}

// SetObjectURL records where an export was published.
func (s *Storage) SetObjectURL(id, url string) error {
	query, args, err := builder().Update(tableExports).
		Set("object_url", url).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// GetExport returns the export with its CSV body.
func (s *Storage) GetExport(id string) (*models.Export, error) {
	query, args, err := builder().Select(exportCols...).
		From(tableExports).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	e, err := scanExport(s.db.QueryRow(query, args...).Scan, true)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return e, nil
}

// ListExports returns up to limit exports, newest first, without their CSV bodies.
func (s *Storage) ListExports(limit int) ([]models.Export, error) {
	cols := make([]string, len(exportCols))
	copy(cols, exportCols)
	cols[csvCol] = "coalesce(length(csv), 0)"

	q := builder().Select(cols...).
		From(tableExports).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []models.Export
	for rows.Next() {
		e, err := scanExport(rows.Scan, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

// CountExports returns the number of exports in the ledger.
func (s *Storage) CountExports() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM exports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exports: %w", err)
	}
	return n, nil
}

// RotateExports keeps at most maxExports newest exports by created_at.
func (s *Storage) RotateExports() error {
	if err := rotate(s.db, s.maxExports); err != nil {
		return fmt.Errorf("failed to rotate exports: %w", err)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func rotate(db execer, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := db.Exec(`
		DELETE FROM exports WHERE id NOT IN (
			SELECT id FROM exports ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	return err
}

var exportCols = []string{
	"id", "view", "granularity", "countries", "row_count", "csv", "object_url", "created_at",
}

// csvCol is the position of the csv column in exportCols.
const csvCol = 5

// scanExport reads one row in exportCols order. Without body the csv column is expected to
// hold its length and CSV is left nil.
func scanExport(scan func(...any) error, body bool) (*models.Export, error) {
	var (
		e         models.Export
		view      string
		gran      string
		countries string
		createdAt int64
		csvLen    int64
	)
	csvDest := any(&e.CSV)
	if !body {
		csvDest = &csvLen
	}
	err := scan(&e.ID, &view, &gran, &countries, &e.RowCount, csvDest, &e.ObjectURL, &createdAt)
	if err != nil {
		return nil, err
	}
	e.View = models.View(view)
	e.Granularity = models.Granularity(gran)
	if err := sonic.UnmarshalString(countries, &e.Countries); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt)
	return &e, nil
}
