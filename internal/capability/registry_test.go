package capability

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func echoFunc() Func {
	return Func{
		Description: "echo for tests",
		Parameters:  objSchema(map[string]any{"text": strProp("text")}, []string{"text"}),
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"text": args["text"]}, nil
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("test", "echo", echoFunc()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fn, err := r.Lookup("test", "echo")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	out, err := fn.Run(context.Background(), map[string]any{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out["text"] != "hi" {
		t.Errorf("wrong output: %v", out)
	}
}

func TestRegistry_UnknownCapability(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("pc", "levitate")
	var uerr *UnknownCapabilityError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UnknownCapabilityError, got %v", err)
	}
	if uerr.Module != "pc" || uerr.Function != "levitate" {
		t.Errorf("error lost the identifiers: %+v", uerr)
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("test", "echo", echoFunc()); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("test", "echo", echoFunc()); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", "echo", echoFunc()); err == nil {
		t.Error("empty module should fail")
	}
	if err := r.Register("test", "", echoFunc()); err == nil {
		t.Error("empty function should fail")
	}
	if err := r.Register("test", "nil", Func{Description: "no handler"}); err == nil {
		t.Error("nil handler should fail")
	}
}

func TestRegistry_Catalog(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("web", "search", echoFunc()); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("pc", "screenshot", echoFunc()); err != nil {
		t.Fatal(err)
	}

	catalog := r.Catalog()
	if !strings.Contains(catalog, "search(text*)") {
		t.Errorf("catalog missing function with args: %q", catalog)
	}
	// Modules come out sorted.
	if strings.Index(catalog, "pc:") > strings.Index(catalog, "web:") {
		t.Errorf("catalog not sorted by module: %q", catalog)
	}
}
