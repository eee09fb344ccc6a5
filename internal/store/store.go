package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Store is the sqlite-backed memory collaborator: append-mostly rows with
// recency and keyword queries. database/sql serializes writes; callers add
// no locking of their own.
type Store struct {
	DB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			payload TEXT,
			timestamp DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user_input TEXT NOT NULL,
			thought TEXT,
			actions TEXT,
			result TEXT,
			success INTEGER DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command_text TEXT NOT NULL,
			target TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_run DATETIME,
			active INTEGER DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			module TEXT NOT NULL,
			function TEXT NOT NULL,
			args TEXT,
			tier TEXT NOT NULL,
			outcome TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Append records a generic event row. kind names the event family; payload
// is stored as JSON.
func (s *Store) Append(kind string, payload map[string]any, ts time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cannot encode payload: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = s.DB.Exec(`INSERT INTO events (kind, payload, timestamp) VALUES (?, ?, ?)`,
		kind, string(data), ts.UTC().Format(time.RFC3339))
	return err
}

// Event is one generic appended row.
type Event struct {
	ID        int64
	Kind      string
	Payload   map[string]any
	Timestamp time.Time
}

// RecentEvents returns the newest n events of a kind, oldest first.
func (s *Store) RecentEvents(kind string, n int) ([]Event, error) {
	rows, err := s.DB.Query(
		`SELECT id, kind, payload, timestamp FROM events WHERE kind = ? ORDER BY id DESC LIMIT ?`,
		kind, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var payload, ts string
		if err := rows.Scan(&e.ID, &e.Kind, &payload, &ts); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(payload), &e.Payload)
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		events = append(events, e)
	}

	// Reverse to get chronological order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, rows.Err()
}

// ─── Command log ───

type CommandRecord struct {
	ID        int64
	Timestamp string
	UserInput string
	Thought   string
	Actions   string
	Result    string
	Success   bool
}

func (s *Store) LogCommand(input, thought string, actions string, result string, success bool) error {
	_, err := s.DB.Exec(
		`INSERT INTO commands (user_input, thought, actions, result, success) VALUES (?, ?, ?, ?, ?)`,
		input, thought, actions, result, boolInt(success))
	return err
}

func (s *Store) RecentCommands(n int) ([]CommandRecord, error) {
	rows, err := s.DB.Query(
		`SELECT id, timestamp, user_input, thought, actions, result, success
		 FROM commands ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var r CommandRecord
		var success int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.UserInput, &r.Thought, &r.Actions, &r.Result, &success); err != nil {
			return nil, err
		}
		r.Success = success == 1
		records = append(records, r)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, rows.Err()
}

// MemoryContext builds the concise recent-command context injected into
// planner prompts. Returns "" when there is no history.
func (s *Store) MemoryContext(n int) string {
	records, err := s.RecentCommands(n)
	if err != nil || len(records) == 0 {
		return ""
	}
	var lines []string
	for _, r := range records {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		input := r.UserInput
		if len(input) > 100 {
			input = input[:100]
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s: %s", r.Timestamp, status, input))
	}
	return strings.Join(lines, "\n")
}

// ─── Notes ───

type Note struct {
	ID        int64
	Timestamp string
	Title     string
	Content   string
	Tags      string
}

func (s *Store) SaveNote(title, content, tags string) (int64, error) {
	res, err := s.DB.Exec(`INSERT INTO notes (title, content, tags) VALUES (?, ?, ?)`,
		title, content, tags)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SearchNotes does a keyword LIKE search over titles, content, and tags.
func (s *Store) SearchNotes(query string, limit int) ([]Note, error) {
	like := "%" + query + "%"
	rows, err := s.DB.Query(
		`SELECT id, timestamp, title, content, tags FROM notes
		 WHERE title LIKE ? OR content LIKE ? OR tags LIKE ?
		 ORDER BY id DESC LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Title, &n.Content, &n.Tags); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// SearchCommands does a keyword LIKE search over the command log.
func (s *Store) SearchCommands(query string, limit int) ([]CommandRecord, error) {
	like := "%" + query + "%"
	rows, err := s.DB.Query(
		`SELECT id, timestamp, user_input, thought, actions, result, success FROM commands
		 WHERE user_input LIKE ? OR result LIKE ?
		 ORDER BY id DESC LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var r CommandRecord
		var success int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.UserInput, &r.Thought, &r.Actions, &r.Result, &success); err != nil {
			return nil, err
		}
		r.Success = success == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// ─── Schedules ───

type Schedule struct {
	ID              int64
	Command         string
	Target          string
	IntervalSeconds int
	LastRun         string
	Active          bool
}

func (s *Store) CreateSchedule(command, target string, intervalSeconds int) (int64, error) {
	// last_run is backdated so a new recurring schedule fires on the next poll.
	res, err := s.DB.Exec(
		`INSERT INTO schedules (command_text, target, interval_seconds, last_run)
		 VALUES (?, ?, ?, datetime('now', '-365 days'))`,
		command, target, intervalSeconds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ActiveSchedules() ([]Schedule, error) {
	rows, err := s.DB.Query(
		`SELECT id, command_text, target, interval_seconds, COALESCE(last_run, ''), active
		 FROM schedules WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// DueSchedules returns active schedules whose interval has elapsed since
// their last run. One-time schedules (interval 0) are due as soon as they
// have never fired.
func (s *Store) DueSchedules() ([]Schedule, error) {
	rows, err := s.DB.Query(
		`SELECT id, command_text, target, interval_seconds, COALESCE(last_run, ''), active
		 FROM schedules
		 WHERE active = 1
		 AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows *sql.Rows) ([]Schedule, error) {
	var schedules []Schedule
	for rows.Next() {
		var sc Schedule
		var active int
		if err := rows.Scan(&sc.ID, &sc.Command, &sc.Target, &sc.IntervalSeconds, &sc.LastRun, &active); err != nil {
			return nil, err
		}
		sc.Active = active == 1
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

func (s *Store) UpdateScheduleLastRun(id int64) error {
	_, err := s.DB.Exec(`UPDATE schedules SET last_run = datetime('now') WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteSchedule(id int64) error {
	_, err := s.DB.Exec(`UPDATE schedules SET active = 0 WHERE id = ?`, id)
	return err
}

// ─── Audit log ───

func (s *Store) LogAudit(module, function, args, tier, outcome string) error {
	_, err := s.DB.Exec(
		`INSERT INTO audit (module, function, args, tier, outcome) VALUES (?, ?, ?, ?, ?)`,
		module, function, args, tier, outcome)
	return err
}

type AuditRecord struct {
	ID        int64
	Timestamp string
	Module    string
	Function  string
	Args      string
	Tier      string
	Outcome   string
}

// RecentAudit returns the newest audit entries, newest first.
func (s *Store) RecentAudit(limit int) ([]AuditRecord, error) {
	rows, err := s.DB.Query(
		`SELECT id, timestamp, module, function, args, tier, outcome
		 FROM audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Module, &r.Function, &r.Args, &r.Tier, &r.Outcome); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
