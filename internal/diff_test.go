package internal

import "testing"

func TestDiffStat(t *testing.T) {
	tests := []struct {
		name    string
		before  string
		after   string
		want    string
	}{
		{"identical", "same line\n", "same line\n", "+0 -0"},
		{"single line replaced", "hello", "world", "+1 -1"},
		{"line appended", "a\nb\n", "a\nb\nc\n", "+1 -0"},
		{"lines removed", "a\nb\nc\n", "a\n", "+0 -2"},
		{"middle line changed", "a\nb\nc\n", "a\nx\nc\n", "+1 -1"},
		{"from empty", "", "x\ny\n", "+2 -0"},
		{"to empty", "x\ny\n", "", "+0 -2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiffStat(tt.before, tt.after); got != tt.want {
				t.Errorf("DiffStat(%q, %q) = %q, want %q", tt.before, tt.after, got, tt.want)
			}
		})
	}
}
