package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"swiss.help", "swiss.register.ok", "swiss.standings.row", "swiss.error.internal"} {
		if !c.Has(key) {
			t.Fatalf("missing embedded key %s", key)
		}
	}
	got, err := c.Render("swiss.register.ok", map[string]any{"Name": "Ada", "ID": 7})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "Ada") || !strings.Contains(got, "7") {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderMissingData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("swiss.register.ok", map[string]any{"Name": "Ada"}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	if got := c.RenderOr("swiss.nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("a.yaml", "swiss:\n  count:\n    ok: \"players={{.Count}}\"\n")
	write("notes.txt", "ignored")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("swiss.count.ok", map[string]any{"Count": 4})
	if err != nil || got != "players=4" {
		t.Fatalf("override not applied: %q %v", got, err)
	}

	write("b.yml", "swiss:\n  count:\n    ok: \"dup\"\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestRejectsNonStringLeaf(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("swiss:\n  count: 3\n")); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
