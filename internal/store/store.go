// Package store persists local client state in sqlite: the signed-in user
// and a short audit trail of auth events. Forced logout clears it through
// the session.UserState interface.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// User is the locally persisted principal.
type User struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// AuthEvent is one entry in the local auth audit trail.
type AuthEvent struct {
	Timestamp time.Time
	Event     string
	Detail    string
}

// Store is a sqlite-backed state store. Safe for concurrent use; sqlite
// serializes through the single shared connection.
type Store struct {
	path string
	conn *sql.DB
}

// Open opens the store at the default location.
func Open() (*Store, error) {
	return OpenAt(DefaultPath())
}

// OpenAt opens (or creates) the store at path. A corrupt database file is
// preserved under a timestamped name and recreated rather than failing the
// whole CLI.
func OpenAt(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	conn, err := openAndInit(clean)
	if err == nil {
		return &Store{path: clean, conn: conn}, nil
	}

	if !isCorruptSQLiteError(err) {
		return nil, err
	}

	if _, statErr := os.Stat(clean); statErr == nil {
		backupPath := clean + ".corrupt." + time.Now().UTC().Format("20060102T150405Z")
		if renameErr := os.Rename(clean, backupPath); renameErr != nil {
			return nil, fmt.Errorf("state db appears corrupt (%v), and rename failed: %w", err, renameErr)
		}
		if sidecarErr := renameSQLiteSidecars(clean, backupPath); sidecarErr != nil {
			return nil, fmt.Errorf("state db appears corrupt (%v), and sidecar rename failed: %w", err, sidecarErr)
		}
	}

	conn, err = openAndInit(clean)
	if err != nil {
		return nil, err
	}
	return &Store{path: clean, conn: conn}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Path returns the on-disk location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// DefaultPath returns the standard state location,
// e.g. ~/.opshub/state/opshub.db.
func DefaultPath() string {
	if home := os.Getenv("OPSHUB_HOME"); home != "" {
		return filepath.Join(home, "state", "opshub.db")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".opshub", "state", "opshub.db")
	}
	return filepath.Join(homeDir, ".opshub", "state", "opshub.db")
}

// SaveUser records the signed-in user, replacing any previous one.
func (s *Store) SaveUser(u User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM current_user_state`); err != nil {
		return fmt.Errorf("clear previous user: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO current_user_state (user_id, email, name, role) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Role,
	); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil when nobody is signed in.
func (s *Store) CurrentUser() (*User, error) {
	row := s.conn.QueryRow(`SELECT user_id, email, name, role FROM current_user_state LIMIT 1`)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	return &u, nil
}

// Clear wipes the signed-in user. Implements session.UserState; invoked by
// the logout guard.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec(`DELETE FROM current_user_state`); err != nil {
		return fmt.Errorf("clear user state: %w", err)
	}
	return nil
}

// RecordAuthEvent appends to the local auth audit trail. Best-effort
// observability; failures are returned but callers typically only log them.
func (s *Store) RecordAuthEvent(event, detail string) error {
	if event == "" {
		return fmt.Errorf("event is required")
	}
	if _, err := s.conn.Exec(
		`INSERT INTO auth_log (event_type, details) VALUES (?, ?)`,
		event, detail,
	); err != nil {
		return fmt.Errorf("record auth event: %w", err)
	}
	return nil
}

// RecentAuthEvents returns the newest events, most recent first.
func (s *Store) RecentAuthEvents(limit int) ([]AuthEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(
		`SELECT timestamp, event_type, COALESCE(details, '') FROM auth_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query auth log: %w", err)
	}
	defer rows.Close()

	var events []AuthEvent
	for rows.Next() {
		var e AuthEvent
		var ts string
		if err := rows.Scan(&ts, &e.Event, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		if parsed, perr := time.Parse("2006-01-02 15:04:05", ts); perr == nil {
			e.Timestamp = parsed
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func openAndInit(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite PRAGMAs are per-connection; keep a single shared connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	initErr := func() error {
		if err := conn.Ping(); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if _, err := conn.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
			return fmt.Errorf("set journal_mode=WAL: %w", err)
		}
		if _, err := conn.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
			return fmt.Errorf("set foreign_keys=ON: %w", err)
		}
		return runMigrations(conn)
	}()

	if initErr != nil {
		_ = conn.Close()
		return nil, initErr
	}
	return conn, nil
}

func dsn(path string) string {
	// Explicit file: DSN so mode=rwc auto-creates the database.
	return "file:" + filepath.ToSlash(path) + "?mode=rwc"
}

func isCorruptSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "file is not a database"):
		return true
	case strings.Contains(msg, "malformed"):
		return true
	default:
		return false
	}
}

func renameSQLiteSidecars(path, backupPath string) error {
	for _, suffix := range []string{"-wal", "-shm"} {
		oldPath := path + suffix
		if _, err := os.Stat(oldPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", oldPath, err)
		}
		if err := os.Rename(oldPath, backupPath+suffix); err != nil {
			return fmt.Errorf("rename %s: %w", oldPath, err)
		}
	}
	return nil
}
