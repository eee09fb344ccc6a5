package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/ghostline/internal/store"
)

// MemoryStore is the slice of the persistence layer the memory module needs.
type MemoryStore interface {
	SaveNote(title, content, tags string) (int64, error)
	SearchNotes(query string, limit int) ([]store.Note, error)
	SearchCommands(query string, limit int) ([]store.CommandRecord, error)
	RecentCommands(n int) ([]store.CommandRecord, error)
}

// Memory persists notes and recalls past activity.
type Memory struct {
	db MemoryStore
}

func NewMemory(db MemoryStore) *Memory {
	return &Memory{db: db}
}

func (m *Memory) Register(r *Registry) error {
	funcs := map[string]Func{
		"save_note": {
			Description: "Save a note for later recall.",
			Parameters: objSchema(map[string]any{
				"title":   strProp("Short title for the note"),
				"content": strProp("The note body"),
				"tags":    strProp("Optional comma-separated tags"),
			}, []string{"title", "content"}),
			Run: m.saveNote,
		},
		"search_notes": {
			Description: "Search saved notes by keyword.",
			Parameters: objSchema(map[string]any{
				"query": strProp("Keyword to search for"),
			}, []string{"query"}),
			Run: m.searchNotes,
		},
		"search_history": {
			Description: "Search past commands and their results by keyword.",
			Parameters: objSchema(map[string]any{
				"query": strProp("Keyword to search for"),
			}, []string{"query"}),
			Run: m.searchHistory,
		},
		"recent_activity": {
			Description: "List the most recent commands and whether they succeeded.",
			Parameters: objSchema(map[string]any{
				"count": intProp("How many commands to list, default 10"),
			}, nil),
			Run: m.recentActivity,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("memory", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) saveNote(ctx context.Context, args map[string]any) (map[string]any, error) {
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	content, err := requireString(args, "content")
	if err != nil {
		return nil, err
	}
	id, err := m.db.SaveNote(title, content, argString(args, "tags"))
	if err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}
	return map[string]any{"text": fmt.Sprintf("Saved note #%d: %s", id, title), "note_id": id}, nil
}

func (m *Memory) searchNotes(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	notes, err := m.db.SearchNotes(query, 10)
	if err != nil {
		return nil, fmt.Errorf("note search failed: %w", err)
	}
	if len(notes) == 0 {
		return map[string]any{"text": "No notes matched " + query}, nil
	}
	var b strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&b, "#%d [%s] %s\n%s\n", n.ID, n.Timestamp, n.Title, n.Content)
	}
	return map[string]any{"text": b.String()}, nil
}

func (m *Memory) searchHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	records, err := m.db.SearchCommands(query, 10)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}
	if len(records) == 0 {
		return map[string]any{"text": "No past commands matched " + query}, nil
	}
	return map[string]any{"text": formatCommands(records)}, nil
}

func (m *Memory) recentActivity(ctx context.Context, args map[string]any) (map[string]any, error) {
	count := argInt(args, "count", 10)
	records, err := m.db.RecentCommands(count)
	if err != nil {
		return nil, fmt.Errorf("could not load recent activity: %w", err)
	}
	if len(records) == 0 {
		return map[string]any{"text": "No activity recorded yet"}, nil
	}
	return map[string]any{"text": formatCommands(records)}, nil
}

func formatCommands(records []store.CommandRecord) string {
	var b strings.Builder
	for _, r := range records {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		input := r.UserInput
		if len(input) > 120 {
			input = input[:120] + "..."
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", r.Timestamp, status, input)
	}
	return b.String()
}
