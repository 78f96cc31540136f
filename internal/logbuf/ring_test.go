package logbuf

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestAppendAndLines(t *testing.T) {
	t.Parallel()
	r := New(4)
	r.Append("a")
	r.Append("b")

	if got := r.Lines(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Lines = %v", got)
	}
}

func TestWraparoundKeepsNewest(t *testing.T) {
	t.Parallel()
	r := New(3)
	for i := 1; i <= 5; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
	}

	want := []string{"line-3", "line-4", "line-5"}
	if got := r.Lines(); !slices.Equal(got, want) {
		t.Errorf("Lines = %v, want %v", got, want)
	}
}

func TestLast(t *testing.T) {
	t.Parallel()
	r := New(8)
	for i := 1; i <= 5; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
	}

	if got := r.Last(2); !slices.Equal(got, []string{"line-4", "line-5"}) {
		t.Errorf("Last(2) = %v", got)
	}
	if got := r.Last(10); len(got) != 5 {
		t.Errorf("Last(10) = %v, want all 5", got)
	}
}

func TestAppendfTimestampsAndJoins(t *testing.T) {
	t.Parallel()
	r := New(2)
	r.Appendf("fetching", "https://example.com/feed")

	lines := r.Lines()
	if len(lines) != 1 {
		t.Fatalf("Lines = %v", lines)
	}
	if !strings.HasSuffix(lines[0], " fetching https://example.com/feed") {
		t.Errorf("line = %q", lines[0])
	}
	// The prefix is an RFC3339 timestamp.
	ts := strings.SplitN(lines[0], " ", 2)[0]
	if !strings.Contains(ts, "T") || !strings.HasSuffix(ts, "Z") {
		t.Errorf("timestamp prefix = %q", ts)
	}
}
