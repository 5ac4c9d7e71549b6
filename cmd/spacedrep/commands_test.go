package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("spacedrep %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestSourceCommands(t *testing.T) {
	dir := t.TempDir()
	decks := filepath.Join(dir, "decks")
	if err := os.MkdirAll(decks, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(decks, "go.md"), []byte("Q: Zero value of int?\nA: 0\n---\nC: Slices\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	flags := []string{"--db", filepath.Join(dir, "data", "cards.db"), "--repos-dir", filepath.Join(dir, "repos"), "--log-level", "error"}

	out := run(t, append([]string{"source", "list"}, flags...)...)
	if !strings.Contains(out, "No sources configured.") {
		t.Errorf("Expected empty source list, but got %q", out)
	}

	out = run(t, append([]string{"source", "add", decks}, flags...)...)
	if !strings.Contains(out, "Added local source 1") {
		t.Errorf("Unexpected add output %q", out)
	}

	out = run(t, append([]string{"sync"}, flags...)...)
	if !strings.Contains(out, "2 new") {
		t.Errorf("Expected 2 new cards, but got %q", out)
	}

	out = run(t, append([]string{"source", "list"}, flags...)...)
	if !strings.Contains(out, decks) || strings.Contains(out, "never") {
		t.Errorf("Expected scanned source in list, but got %q", out)
	}

	out = run(t, append([]string{"source", "remove", "1"}, flags...)...)
	if !strings.Contains(out, "Removed source 1") {
		t.Errorf("Unexpected remove output %q", out)
	}
}

func TestSourceRemoveRejectsBadID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"source", "remove", "abc", "--db", filepath.Join(t.TempDir(), "x.db")})
	if err := root.Execute(); err == nil {
		t.Error("Expected an error for a non-numeric source ID")
	}
}
