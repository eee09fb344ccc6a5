package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan       EventType = "plan"
	EventTypeStep       EventType = "step"
	EventTypeStepResult EventType = "step_result"
	EventTypeGoal       EventType = "goal"
	EventTypeTrigger    EventType = "trigger"
	EventTypeError      EventType = "error"
	EventTypeHeartbeat  EventType = "heartbeat"
	EventTypeLLM        EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	Target    string    `json:"target,omitempty"`
	GoalID    string    `json:"goal_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. LLM exchanges additionally go to a
// size-rotated JSONL file for offline inspection.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout. A nil Logger drops events so
// callers never have to guard.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(target, thought string, actions int) {
	l.Log(Event{
		Type:   EventTypePlan,
		Target: target,
		Data: map[string]any{
			"thought": thought,
			"actions": actions,
		},
	})
}

func (l *Logger) LogStep(target, module, function string, args map[string]any) {
	l.Log(Event{
		Type:   EventTypeStep,
		Target: target,
		Data: map[string]any{
			"module":   module,
			"function": function,
			"args":     args,
		},
	})
}

func (l *Logger) LogStepResult(target, module, function string, success bool, preview string) {
	l.Log(Event{
		Type:   EventTypeStepResult,
		Target: target,
		Data: map[string]any{
			"module":   module,
			"function": function,
			"success":  success,
			"preview":  preview,
		},
	})
}

func (l *Logger) LogGoal(target, goalID, status, detail string) {
	l.Log(Event{
		Type:   EventTypeGoal,
		Target: target,
		GoalID: goalID,
		Data: map[string]string{
			"status": status,
			"detail": detail,
		},
	})
}

func (l *Logger) LogTrigger(target, command string) {
	l.Log(Event{
		Type:   EventTypeTrigger,
		Target: target,
		Data:   map[string]string{"command": command},
	})
}

func (l *Logger) LogError(target, message string) {
	l.Log(Event{
		Type:   EventTypeError,
		Target: target,
		Data:   map[string]string{"message": message},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(target, goalID string, prompt, response string) {
	l.Log(Event{
		Type:   EventTypeLLM,
		Target: target,
		GoalID: goalID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}
