package version

import (
	"strings"
	"testing"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	Version, Commit, BuildDate = "1.2.3", "abc123", "2024-05-01"
	t.Cleanup(func() { Version, Commit, BuildDate = "dev", "unknown", "unknown" })

	got := String()
	for _, want := range []string{"watertel 1.2.3", "commit: abc123", "built: 2024-05-01"} {
		if !strings.Contains(got, want) {
			t.Fatalf("%q missing %q", got, want)
		}
	}
	if ua := UserAgent(); ua != "watertel/1.2.3" {
		t.Fatalf("user agent = %q", ua)
	}
}
