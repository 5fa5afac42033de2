package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSink stores records in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
//
// Arguments:
// - path: A file path, or ":memory:".
//
// Returns:
// - *SQLiteSink: The sink.
// - error: An error if the database cannot be opened or migrated.
func Open(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	sink := &SQLiteSink{db: db}
	if err := sink.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return sink, nil
}

func (s *SQLiteSink) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        created_at TEXT NOT NULL,
        method TEXT NOT NULL,
        confidence REAL NOT NULL,
        document BLOB NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at);
    `
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Save implements Sink. An existing record with the same id is replaced.
func (s *SQLiteSink) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	if len(rec.Document) == 0 {
		rec.Document = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer tx.Rollback()

	query := `
        INSERT INTO analyses (id, user_id, created_at, method, confidence, document)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            user_id = excluded.user_id,
            created_at = excluded.created_at,
            method = excluded.method,
            confidence = excluded.confidence,
            document = excluded.document
    `
	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.CreatedAt.UTC().Format(timeLayout),
		rec.Method, rec.Confidence, rec.Document)
	if err != nil {
		return errors.Wrapf(err, "upsert analysis %s", rec.ID)
	}

	return errors.Wrap(tx.Commit(), "commit analysis")
}

// Get returns the record with the given id, or ErrNotFound.
func (s *SQLiteSink) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, user_id, created_at, method, confidence, document
        FROM analyses WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListByUser returns a user's most recent records, newest first.
//
// Arguments:
// - ctx: Bounds the query.
// - userID: The user.
// - limit: Maximum records; 20 when not positive.
//
// Returns:
// - []Record: The records; empty when the user has none.
// - error: A query error.
func (s *SQLiteSink) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, created_at, method, confidence, document
        FROM analyses
        WHERE user_id = ?
        ORDER BY created_at DESC, id
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query analyses")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "iterate analyses")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.UserID, &createdAt, &rec.Method, &rec.Confidence, &rec.Document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, errors.Wrap(err, "scan analysis")
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Record{}, errors.Wrapf(err, "parse created_at of %s", rec.ID)
	}
	rec.CreatedAt = t
	return rec, nil
}
