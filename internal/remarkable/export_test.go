package remarkable

import (
	"errors"
	"testing"
)

func TestExportSucceeded(t *testing.T) {
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name   string
		err    error
		stdout string
		want   bool
	}{
		{"clean exit", nil, "", true},
		{"failure with up-to-date marker", exitErr, "template fetch failed\nAll files are up to date\n", true},
		{"failure with backup marker", exitErr, "Backup completed", true},
		{"failure without marker", exitErr, "device not connected", false},
		{"failure with empty stdout", exitErr, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exportSucceeded(tt.err, tt.stdout); got != tt.want {
				t.Errorf("exportSucceeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
