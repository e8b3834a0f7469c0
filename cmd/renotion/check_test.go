package main

import (
	"strings"
	"testing"
)

func TestPrintResults(t *testing.T) {
	var out strings.Builder

	printResults(&out, []checkResult{
		{name: "Configuration", passed: true},
		{name: "Export tool installed", passed: false, message: "not on PATH"},
		{name: "Google Drive", passed: true, message: "not configured"},
	})

	got := out.String()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "✓ Configuration" {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "✗") || !strings.Contains(lines[1], "not on PATH") {
		t.Errorf("line 2 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "not configured") {
		t.Errorf("line 3 = %q", lines[2])
	}
}
