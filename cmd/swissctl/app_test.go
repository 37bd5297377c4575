package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"swissctl", "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	return out.String(), err
}

func TestCLIAgainstRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("REDIS_KEY_PREFIX", "cli")
	t.Setenv("STANDINGS_STRATEGY", "")
	t.Setenv("PAIRING_STRATEGY", "")

	for _, n := range []string{"Ann", "Ben", "Cal", "Dee"} {
		if _, err := run(t, "register", n); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	for _, r := range [][2]string{{"1", "2"}, {"#3", "4"}} {
		if _, err := run(t, "report", r[0], r[1]); err != nil {
			t.Fatalf("report %v: %v", r, err)
		}
	}
	if _, err := run(t, "report", "1", "1"); err == nil {
		t.Fatalf("self match accepted")
	}

	out, err := run(t, "--standings", "cached", "standings")
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 || !strings.Contains(lines[1], "Ann") {
		t.Fatalf("unexpected standings:\n%s", out)
	}

	out, err = run(t, "pairings")
	if err != nil {
		t.Fatalf("pairings: %v", err)
	}
	if !strings.HasPrefix(out, "1\tAnn\t3\tCal\n") {
		t.Fatalf("unexpected pairings:\n%s", out)
	}

	if _, err := run(t, "reset"); err == nil {
		t.Fatalf("reset ran without --yes")
	}
	if _, err := run(t, "reset", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, err = run(t, "count")
	if err != nil || strings.TrimSpace(out) != "0" {
		t.Fatalf("count after reset = %q, %v", out, err)
	}
}

func TestStandingsPNG(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	path := filepath.Join(t.TempDir(), "card.png")
	if _, err := run(t, "standings", "--png", path); err != nil {
		t.Fatalf("standings: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}
}
