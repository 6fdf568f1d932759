package match

import (
	"regexp"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	compiled = make(map[string]*regexp.Regexp)
)

// Matches reports whether input matches pattern. Checks run in order and the
// first hit wins: case-insensitive substring containment, then wildcard
// expansion when the pattern contains "*", then case-insensitive prefix match.
//
// Wildcard patterns are compiled to an anchored case-insensitive regex with
// each "*" replaced by ".*". Other regex metacharacters are deliberately NOT
// escaped: a "." in a user pattern behaves as a regex wildcard too. Existing
// user configurations depend on this, so it must not be "fixed".
func Matches(input, pattern string) bool {
	if pattern == "" {
		return false
	}

	lowerInput := strings.ToLower(input)
	lowerPattern := strings.ToLower(pattern)

	if strings.Contains(lowerInput, lowerPattern) {
		return true
	}

	if strings.Contains(pattern, "*") {
		if re := wildcardRegexp(pattern); re != nil && re.MatchString(input) {
			return true
		}
	}

	return strings.HasPrefix(lowerInput, lowerPattern)
}

// MatchesAny returns the first pattern in patterns that matches input.
func MatchesAny(input string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if Matches(input, p) {
			return p, true
		}
	}
	return "", false
}

func wildcardRegexp(pattern string) *regexp.Regexp {
	mu.RLock()
	re, ok := compiled[pattern]
	mu.RUnlock()
	if ok {
		return re
	}

	expr := "(?i)^" + strings.ReplaceAll(pattern, "*", ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}

	mu.Lock()
	compiled[pattern] = re
	mu.Unlock()
	return re
}
