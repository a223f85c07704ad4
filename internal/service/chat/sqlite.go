package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/diagnobuddy/backend/internal/model/chat"
)

// SQLiteStore keeps chat history in a SQLite file so it survives restarts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dataSourceName.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS history (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        email TEXT NOT NULL,
        message TEXT NOT NULL,
        response TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_history_email ON history (email, seq);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Append records one exchange for email.
func (s *SQLiteStore) Append(ctx context.Context, email, message string, response json.RawMessage) (chat.HistoryEntry, error) {
	email = normalizeEmail(email)
	if email == "" {
		return chat.HistoryEntry{}, ErrEmailRequired
	}

	entry := chat.HistoryEntry{
		ID:        uuid.NewString(),
		Message:   message,
		Response:  append(json.RawMessage(nil), response...),
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO history (id, email, message, response, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, email, entry.Message, string(entry.Response), entry.CreatedAt)
	if err != nil {
		return chat.HistoryEntry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}
	return entry, nil
}

// History returns the entries for email, oldest first. Query failures are
// logged and yield an empty slice.
func (s *SQLiteStore) History(ctx context.Context, email string) []chat.HistoryEntry {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, message, response, created_at FROM history WHERE email = ? ORDER BY seq ASC",
		normalizeEmail(email))
	if err != nil {
		log.Printf("[history] query failed: %v", err)
		return []chat.HistoryEntry{}
	}
	defer rows.Close()

	entries := []chat.HistoryEntry{}
	for rows.Next() {
		var entry chat.HistoryEntry
		var response string
		if err := rows.Scan(&entry.ID, &entry.Message, &response, &entry.CreatedAt); err != nil {
			log.Printf("[history] scan failed: %v", err)
			return []chat.HistoryEntry{}
		}
		entry.Response = json.RawMessage(response)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[history] rows failed: %v", err)
	}
	return entries
}

// Delete drops every entry for email.
func (s *SQLiteStore) Delete(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE email = ?", normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNoHistory
	}
	return nil
}

// Emails lists the addresses that have history, sorted.
func (s *SQLiteStore) Emails() []string {
	rows, err := s.db.Query("SELECT DISTINCT email FROM history ORDER BY email")
	if err != nil {
		log.Printf("[history] query emails failed: %v", err)
		return nil
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			log.Printf("[history] scan email failed: %v", err)
			return emails
		}
		emails = append(emails, email)
	}
	return emails
}
