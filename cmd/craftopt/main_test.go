//go:build !lambda

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"craft-optimizer/internal/server"
)

const testRequest = `{
	"progress": 200,
	"quality": 1000,
	"base_progress": 100,
	"base_quality": 100,
	"cp": 50,
	"durability": 30,
	"job_level": 100,
	"actions": ["BasicSynthesis", "BasicTouch", "Innovation"]
}`

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("craftopt %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestSolveCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(path, []byte(testRequest), 0o644); err != nil {
		t.Fatal(err)
	}
	out := run(t, "", "solve", "--macro", "--workers", "2", path)

	// 1. table header and the summary line
	if !strings.Contains(out, "Progress") || !strings.Contains(out, "progress 200/200, quality 150/1000, 4 steps, complete") {
		t.Errorf("unexpected table:\n%s", out)
	}
	// 2. the proof note
	if !strings.Contains(out, "optimal, ") {
		t.Errorf("missing optimality note:\n%s", out)
	}
	// 3. one macro with every step
	if strings.Count(out, "/ac ") != 4 || !strings.Contains(out, "Macro 1:") {
		t.Errorf("unexpected macro:\n%s", out)
	}
}

func TestSolveCommandJSONFromStdin(t *testing.T) {
	out := run(t, testRequest, "solve", "--json")
	var resp server.SolveResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Quality != 150 || resp.Steps != 4 || !resp.Optimal {
		t.Errorf("got quality %d in %d steps (optimal=%v), want 150 in 4 (optimal)", resp.Quality, resp.Steps, resp.Optimal)
	}
	if resp.Macros != nil {
		t.Errorf("macros printed without --macro")
	}
}

func TestSolveCommandUsesCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.db")
	run(t, testRequest, "solve", "--cache", cache)
	out := run(t, testRequest, "solve", "--cache", cache)
	if !strings.Contains(out, "optimal, cached") {
		t.Errorf("second solve was not served from the cache:\n%s", out)
	}
}

func TestSolveCommandRejectsBadRequest(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"solve"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(`{"progress": 0}`))
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an invalid request")
	}
}

func TestActionsCommand(t *testing.T) {
	out := run(t, "", "actions", "--level", "15")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header plus the seven actions unlocked by level 15
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "0   BasicSynthesis") {
		t.Errorf("first row %q", lines[1])
	}
	if strings.Contains(out, "Manipulation") {
		t.Errorf("level 15 lists Manipulation:\n%s", out)
	}
}
