package glimpse

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// Roles stored in the messages table. Nothing else is valid.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DB is the append-only message store. Messages are immutable once written;
// ordering is creation time with ties broken by insertion order.
type DB struct {
	mu sync.Mutex
	db *sql.DB

	filepath string
}

// Message is one chat turn. ImageData is only ever set on user messages,
// MetaTags only on assistant messages.
type Message struct {
	Id        int64
	SessionId string
	Role      string
	Content   string
	ImageData string          // bounded-size data URI
	MetaTags  json.RawMessage // serialized tag mapping
	CreatedAt time.Time
}

// Stats are the aggregate figures reported alongside message history.
type Stats struct {
	TotalMessages int   `json:"total_messages"`
	DaysActive    int   `json:"days_active"`
	TotalChars    int64 `json:"total_chars"`
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.db.Close()
}

// InsertMessage appends one turn and fills in the generated id. CreatedAt
// defaults to now when unset.
func (db *DB) InsertMessage(ctx context.Context, msg *Message) error {
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return fmt.Errorf("invalid role %q", msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var image, meta sql.NullString
	if msg.ImageData != "" {
		image = sql.NullString{String: msg.ImageData, Valid: true}
	}
	if len(msg.MetaTags) > 0 {
		meta = sql.NullString{String: string(msg.MetaTags), Valid: true}
	}

	res, err := db.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content, image_data, meta_tags, created_at) VALUES (?,?,?,?,?,?)",
		msg.SessionId, msg.Role, msg.Content, image, meta, msg.CreatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	msg.Id = id
	return nil
}

// Messages returns stored turns in chronological order. An empty sessionID
// returns every message across sessions.
func (db *DB) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	query := "SELECT id, session_id, role, content, image_data, meta_tags, created_at FROM messages"
	var args []any
	if sessionID != "" {
		query += " WHERE session_id=?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return msgs, nil
}

// RecentMessages returns up to limit of the newest turns for a session,
// oldest first. This is the bounded context window handed to the provider.
func (db *DB) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, image_data, meta_tags, created_at
		FROM messages
		WHERE session_id=?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest-first, callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}

// Stats returns aggregate counts over all stored messages.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT DATE(created_at)),
			COALESCE(SUM(LENGTH(content)), 0)
		FROM messages`)
	if row.Err() != nil {
		return nil, row.Err()
	}

	stats := &Stats{}
	if err := row.Scan(&stats.TotalMessages, &stats.DaysActive, &stats.TotalChars); err != nil {
		return nil, err
	}

	return stats, nil
}

// ClearMessages deletes every stored turn.
func (db *DB) ClearMessages(ctx context.Context) error {
	_, err := db.db.ExecContext(ctx, "DELETE FROM messages")
	return err
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	msg := &Message{}

	var image, meta sql.NullString
	err := rows.Scan(&msg.Id, &msg.SessionId, &msg.Role, &msg.Content, &image, &meta, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		msg.ImageData = image.String
	}
	if meta.Valid {
		msg.MetaTags = json.RawMessage(meta.String)
	}

	return msg, nil
}
