// Package journal records occupancy changes in a sqlite database. Each
// process run is a session identified by a UUID.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/stream"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	started_ns INTEGER NOT NULL,
	source     TEXT
);
CREATE TABLE IF NOT EXISTS changes (
	change_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	time_ns    INTEGER NOT NULL,
	method     INTEGER NOT NULL,
	bitmap     INTEGER NOT NULL,
	placed     INTEGER NOT NULL,
	lifted     INTEGER NOT NULL,
	initial    INTEGER NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(session_id)
);
CREATE INDEX IF NOT EXISTS idx_changes_session_time ON changes(session_id, time_ns);
`

// Journal appends changes to one session.
type Journal struct {
	db      *sql.DB
	session string
	log     zerolog.Logger
}

// Open opens or creates the database at path (":memory:" for a private
// in-memory database) and starts a new session for source.
func Open(path, source string, log zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// in-memory databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	j := &Journal{db: db, session: uuid.New().String()}
	if _, err := db.Exec("INSERT INTO sessions (session_id, started_ns, source) VALUES (?, ?, ?)",
		j.session, time.Now().UnixNano(), source); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert session: %w", err)
	}
	j.log = log.With().Str("session", j.session).Logger()
	return j, nil
}

// SessionID returns the id of the current session.
func (j *Journal) SessionID() string { return j.session }

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one change.
func (j *Journal) Record(c stream.Change) error {
	_, err := j.db.Exec(`
		INSERT INTO changes (session_id, time_ns, method, bitmap, placed, lifted, initial)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.session,
		c.Time.UnixNano(),
		int(c.Method),
		int64(c.Bitmap),
		int64(c.Placed),
		int64(c.Lifted),
		c.Initial,
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

// Run records changes until in is closed. Failures are logged.
func (j *Journal) Run(in <-chan stream.Change) {
	for c := range in {
		if err := j.Record(c); err != nil {
			j.log.Error().Err(err).Msg("journal write failed")
		}
	}
}

// Changes returns the changes of a session between from and to inclusive,
// oldest first. An empty session selects the current one.
func (j *Journal) Changes(ctx context.Context, session string, from, to time.Time) ([]stream.Change, error) {
	if session == "" {
		session = j.session
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT time_ns, method, bitmap, placed, lifted, initial
		FROM changes
		WHERE session_id = ? AND time_ns BETWEEN ? AND ?
		ORDER BY time_ns, change_id`,
		session, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var result []stream.Change
	for rows.Next() {
		var (
			timeNs                 int64
			method                 int
			bitmap, placed, lifted int64
			initial                bool
		)
		if err := rows.Scan(&timeNs, &method, &bitmap, &placed, &lifted, &initial); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		result = append(result, stream.Change{
			Time:    time.Unix(0, timeNs),
			Method:  uint8(method),
			Bitmap:  board.Bitmap(bitmap),
			Placed:  board.Bitmap(placed),
			Lifted:  board.Bitmap(lifted),
			Initial: initial,
		})
	}
	return result, rows.Err()
}

// Session describes one recorded session.
type Session struct {
	ID      string
	Started time.Time
	Source  string
	Changes int
}

// Sessions lists all sessions, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.session_id, s.started_ns, COALESCE(s.source, ''), COUNT(c.change_id)
		FROM sessions s LEFT JOIN changes c ON c.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var result []Session
	for rows.Next() {
		var (
			s       Session
			started int64
		)
		if err := rows.Scan(&s.ID, &started, &s.Source, &s.Changes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Started = time.Unix(0, started)
		result = append(result, s)
	}
	return result, rows.Err()
}

// Position returns the last recorded bitmap of a session at or before t.
func (j *Journal) Position(ctx context.Context, session string, t time.Time) (board.Bitmap, bool, error) {
	if session == "" {
		session = j.session
	}
	var bitmap int64
	err := j.db.QueryRowContext(ctx, `
		SELECT bitmap FROM changes
		WHERE session_id = ? AND time_ns <= ?
		ORDER BY time_ns DESC, change_id DESC LIMIT 1`,
		session, t.UnixNano()).Scan(&bitmap)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query position: %w", err)
	}
	return board.Bitmap(bitmap), true, nil
}
