package plan

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, data string) *Plan {
	t.Helper()
	p, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

func TestResolveArgs_FieldReference(t *testing.T) {
	p := mustParse(t, `{"actions": [
		{"module": "pc", "function": "screenshot", "args": {}},
		{"module": "telegram", "function": "send_file", "args": {"path": "{result_of_action_0.path}"}}
	]}`)

	results := []Result{Ok(map[string]any{"path": "/tmp/desktop_1.png"})}
	args, err := ResolveArgs(p.Actions[1].Args, 1, results)
	if err != nil {
		t.Fatalf("ResolveArgs failed: %v", err)
	}
	if args["path"] != "/tmp/desktop_1.png" {
		t.Errorf("wrong resolved path: %v", args["path"])
	}
}

func TestResolveArgs_WholePayloadReference(t *testing.T) {
	p := mustParse(t, `{"actions": [
		{"module": "web", "function": "search", "args": {}},
		{"module": "api_connector", "function": "call_api", "args": {"body": "{result_of_action_0}"}}
	]}`)

	payload := map[string]any{"text": "results", "status": 200}
	args, err := ResolveArgs(p.Actions[1].Args, 1, []Result{Ok(payload)})
	if err != nil {
		t.Fatalf("ResolveArgs failed: %v", err)
	}
	got, ok := args["body"].(map[string]any)
	if !ok || got["status"] != 200 {
		t.Errorf("payload not passed through: %v", args["body"])
	}
}

func TestResolveArgs_TemplateStringifies(t *testing.T) {
	p := mustParse(t, `{"actions": [
		{"module": "web", "function": "search", "args": {}},
		{"module": "telegram", "function": "send_message", "args": {"text": "found: {result_of_action_0.title}"}}
	]}`)

	args, err := ResolveArgs(p.Actions[1].Args, 1, []Result{Ok(map[string]any{"title": "Go"})})
	if err != nil {
		t.Fatalf("ResolveArgs failed: %v", err)
	}
	if args["text"] != "found: Go" {
		t.Errorf("wrong template result: %v", args["text"])
	}
}

func TestResolveArgs_ReferencedStepFailed(t *testing.T) {
	p := mustParse(t, `{"actions": [
		{"module": "pc", "function": "screenshot", "args": {}},
		{"module": "telegram", "function": "send_file", "args": {"path": "{result_of_action_0.path}"}}
	]}`)

	results := []Result{Failed(errors.New("scrot not installed"))}
	_, err := ResolveArgs(p.Actions[1].Args, 1, results)

	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if rerr.Step != 0 {
		t.Errorf("wrong step in error: %d", rerr.Step)
	}
	if !strings.Contains(rerr.Error(), "scrot not installed") {
		t.Errorf("error should carry the upstream failure: %v", rerr)
	}
}

func TestResolveArgs_ForwardReferenceRejected(t *testing.T) {
	p := mustParse(t, `{"actions": [
		{"module": "telegram", "function": "send_file", "args": {"path": "{result_of_action_1.path}"}},
		{"module": "pc", "function": "screenshot", "args": {}}
	]}`)

	_, err := ResolveArgs(p.Actions[0].Args, 0, nil)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}

func TestResolveArgs_SelfReferenceRejected(t *testing.T) {
	args := map[string]Value{"path": RefVal(1, "path")}
	results := []Result{Ok(map[string]any{}), Ok(map[string]any{})}
	_, err := ResolveArgs(args, 1, results)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError for self reference, got %v", err)
	}
}

func TestResolveArgs_MissingField(t *testing.T) {
	args := map[string]Value{"path": RefVal(0, "nope")}
	_, err := ResolveArgs(args, 1, []Result{Ok(map[string]any{"path": "/tmp/x"})})
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if !strings.Contains(rerr.Error(), "nope") {
		t.Errorf("error should name the missing field: %v", rerr)
	}
}

func TestResolveArgs_LiteralsUntouched(t *testing.T) {
	args := map[string]Value{
		"query": Lit("weather"),
		"count": Lit(float64(5)),
	}
	resolved, err := ResolveArgs(args, 0, nil)
	if err != nil {
		t.Fatalf("ResolveArgs failed: %v", err)
	}
	if resolved["query"] != "weather" || resolved["count"] != float64(5) {
		t.Errorf("literals changed: %v", resolved)
	}
}
