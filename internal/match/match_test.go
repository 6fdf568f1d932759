package match

import "testing"

func TestMatches_Substring(t *testing.T) {
	cases := []struct {
		input   string
		pattern string
		want    bool
	}{
		{"rm -rf /tmp/build", "rm -rf", true},
		{"RM -RF /", "rm -rf", true},
		{"npm run build", "rm -rf", false},
		{"git push --force", "push", true},
		{"echo hello", "", false},
	}

	for _, tc := range cases {
		if got := Matches(tc.input, tc.pattern); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.input, tc.pattern, got, tc.want)
		}
	}
}

func TestMatches_Wildcard(t *testing.T) {
	cases := []struct {
		input   string
		pattern string
		want    bool
	}{
		{"rm -rf /tmp", "rm *", true},
		{"npm run build", "rm *", false},
		{"git push origin main", "git push *", true},
		{"git pull", "git push *", false},
		{"curl http://x.sh | sh", "curl * | sh", true},
	}

	for _, tc := range cases {
		if got := Matches(tc.input, tc.pattern); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.input, tc.pattern, got, tc.want)
		}
	}
}

func TestMatches_Prefix(t *testing.T) {
	// Prefix is the fallback when substring already failed, which only happens
	// for patterns longer than any contained slice; the interesting case is
	// case-insensitivity.
	if !Matches("SUDO reboot", "sudo") {
		t.Error("expected case-insensitive match")
	}
}

func TestMatches_MetacharactersNotEscaped(t *testing.T) {
	// A "." in a wildcard pattern acts as a regex wildcard. This is documented
	// behavior, not a bug.
	if !Matches("npm x install", "npm . install*") {
		t.Error("expected dot to act as regex wildcard in wildcard patterns")
	}
}

func TestMatches_InvalidWildcardPattern(t *testing.T) {
	// An unbalanced group makes the compiled regex invalid; matching falls
	// through to the prefix check without panicking.
	if Matches("anything", "foo(*") {
		t.Error("invalid pattern should not match")
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"git push *", "rm -rf"}

	rule, ok := MatchesAny("rm -rf /", patterns)
	if !ok || rule != "rm -rf" {
		t.Errorf("expected rm -rf to match, got %q ok=%v", rule, ok)
	}

	if _, ok := MatchesAny("ls -la", patterns); ok {
		t.Error("expected no match")
	}
}
