package buildinfo

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)

	Version, Commit, Date = "v1.0.0", "abc123", ""
	if got := String(); got != "v1.0.0 (abc123)" {
		t.Fatalf("String() = %q", got)
	}
	Date = "2026-10-01T12:00:00Z"
	if got := String(); got != "v1.0.0 (abc123, 2026-10-01T12:00:00Z)" {
		t.Fatalf("String() = %q", got)
	}
	Commit, Date = "", ""
	if got := String(); got != "v1.0.0" {
		t.Fatalf("String() = %q", got)
	}
}
