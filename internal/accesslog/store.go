// Package accesslog keeps a SQLite ledger of served connections.
package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fserve/internal/logging"
)

// Entry is one ledger row: a connection that produced a response, or one
// that was dropped before it could.
type Entry struct {
	ID           string    `json:"id"`
	ConnID       string    `json:"connId"`
	RemoteAddr   string    `json:"remoteAddr,omitempty"`
	Method       string    `json:"method,omitempty"`
	Target       string    `json:"target,omitempty"`
	RequestPath  string    `json:"requestPath,omitempty"`
	ResolvedPath string    `json:"resolvedPath,omitempty"`
	Status       int       `json:"status"` // 0 when nothing was written
	Kind         string    `json:"kind,omitempty"`
	Escaped      bool      `json:"escaped,omitempty"`
	Bytes        int       `json:"bytes"`
	DurationMs   int64     `json:"durationMs"`
	Code         string    `json:"code,omitempty"` // error code of a dropped connection
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the ledger database.
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the ledger at path.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	dbExists := fileExists(path)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open access ledger: %w", err)
	}
	// One writer at a time; connection goroutines queue on the pool.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{conn: conn, logger: logger, dbPath: path}

	if !dbExists {
		logger.Info("Creating access ledger", map[string]interface{}{
			"path": path,
		})
	}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return store, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS access (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conn_id TEXT NOT NULL,
			remote_addr TEXT,
			method TEXT,
			target TEXT,
			request_path TEXT,
			resolved_path TEXT,
			status INTEGER NOT NULL DEFAULT 0,
			kind TEXT,
			escaped INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			code TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_access_created_at ON access(created_at DESC);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Record appends e. A missing ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO access (id, conn_id, remote_addr, method, target, request_path, resolved_path,
			status, kind, escaped, bytes, duration_ms, code, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.ConnID,
		nullString(e.RemoteAddr),
		nullString(e.Method),
		nullString(e.Target),
		nullString(e.RequestPath),
		nullString(e.ResolvedPath),
		e.Status,
		nullString(e.Kind),
		e.Escaped,
		e.Bytes,
		e.DurationMs,
		nullString(e.Code),
		nullString(e.Error),
		e.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// means 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, conn_id, remote_addr, method, target, request_path, resolved_path,
			status, kind, escaped, bytes, duration_ms, code, error, created_at
		FROM access
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query access ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e                                                        Entry
			remote, method, target, reqPath, resPath, kind, code, ef sql.NullString
			createdAt                                                int64
		)
		if err := rows.Scan(&e.ID, &e.ConnID, &remote, &method, &target, &reqPath, &resPath,
			&e.Status, &kind, &e.Escaped, &e.Bytes, &e.DurationMs, &code, &ef, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan access entry: %w", err)
		}
		e.RemoteAddr = remote.String
		e.Method = method.String
		e.Target = target.String
		e.RequestPath = reqPath.String
		e.ResolvedPath = resPath.String
		e.Kind = kind.String
		e.Code = code.String
		e.Error = ef.String
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access ledger: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM access").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count access entries: %w", err)
	}
	return n, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().UnixNano()

	result, err := s.conn.ExecContext(ctx, "DELETE FROM access WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune access ledger: %w", err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Debug("Pruned access ledger", map[string]interface{}{
			"deleted":   n,
			"olderThan": olderThan.String(),
		})
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
