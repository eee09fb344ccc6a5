package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CommandLog(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogCommand("take a screenshot", "grab the screen", "pc.screenshot()", "ok", true); err != nil {
		t.Fatal(err)
	}
	if err := s.LogCommand("reboot", "", "", "denied by operator", false); err != nil {
		t.Fatal(err)
	}

	records, err := s.RecentCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Chronological order: oldest first.
	if records[0].UserInput != "take a screenshot" || !records[0].Success {
		t.Errorf("first record wrong: %+v", records[0])
	}
	if records[1].UserInput != "reboot" || records[1].Success {
		t.Errorf("second record wrong: %+v", records[1])
	}
}

func TestStore_MemoryContext(t *testing.T) {
	s := openTestStore(t)

	if got := s.MemoryContext(5); got != "" {
		t.Errorf("empty history should yield empty context, got %q", got)
	}

	if err := s.LogCommand("check disk space", "", "", "42% used", true); err != nil {
		t.Fatal(err)
	}
	got := s.MemoryContext(5)
	if !strings.Contains(got, "check disk space") || !strings.Contains(got, "ok") {
		t.Errorf("context missing command: %q", got)
	}
}

func TestStore_Notes(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveNote("wifi password", "hunter2", "home,network")
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("expected a row id")
	}
	if _, err := s.SaveNote("groceries", "milk, eggs", ""); err != nil {
		t.Fatal(err)
	}

	notes, err := s.SearchNotes("network", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Title != "wifi password" {
		t.Errorf("tag search wrong: %+v", notes)
	}

	notes, err = s.SearchNotes("milk", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Title != "groceries" {
		t.Errorf("content search wrong: %+v", notes)
	}

	notes, err = s.SearchNotes("nothing matches this", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Errorf("expected no matches, got %+v", notes)
	}
}

func TestStore_SearchCommands(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogCommand("zip the reports folder", "", "", "created reports.zip", true); err != nil {
		t.Fatal(err)
	}
	if err := s.LogCommand("unrelated", "", "", "", true); err != nil {
		t.Fatal(err)
	}

	records, err := s.SearchCommands("reports", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].UserInput != "zip the reports folder" {
		t.Errorf("search wrong: %+v", records)
	}
}

func TestStore_Schedules(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateSchedule("check disk space", "chat1", 3600)
	if err != nil {
		t.Fatal(err)
	}

	// A fresh schedule is backdated, so it is due immediately.
	due, err := s.DueSchedules()
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("new schedule should be due: %+v", due)
	}

	if err := s.UpdateScheduleLastRun(id); err != nil {
		t.Fatal(err)
	}
	due, err = s.DueSchedules()
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("schedule should not be due right after running: %+v", due)
	}

	active, err := s.ActiveSchedules()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Command != "check disk space" {
		t.Errorf("active list wrong: %+v", active)
	}

	if err := s.DeleteSchedule(id); err != nil {
		t.Fatal(err)
	}
	active, err = s.ActiveSchedules()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("deleted schedule still active: %+v", active)
	}
}

func TestStore_Audit(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogAudit("pc", "run_command", `{"command":"uptime"}`, "dangerous", "approved"); err != nil {
		t.Fatal(err)
	}
	if err := s.LogAudit("pc", "shutdown", "{}", "critical", "denied"); err != nil {
		t.Fatal(err)
	}

	records, err := s.RecentAudit(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(records))
	}
	// Newest first.
	if records[0].Function != "shutdown" || records[0].Outcome != "denied" {
		t.Errorf("audit order or content wrong: %+v", records[0])
	}
}

func TestStore_Events(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	if err := s.Append("boot", map[string]any{"version": "1"}, base); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("boot", map[string]any{"version": "2"}, base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	events, err := s.RecentEvents("boot", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Payload["version"] != "1" {
		t.Errorf("events not chronological: %+v", events)
	}
}
