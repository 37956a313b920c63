// Package filter selects vault files by glob patterns and search terms.
// The same rules apply to listing and mirroring.
package filter

import (
	"path"
	"strings"

	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns, matched against the full name and the base name.
	// Empty means include all. Example: []string{"*.csv", "*.txt"}
	Include []string

	// Exclude patterns. Takes precedence over Include.
	Exclude []string

	// Search terms (case-insensitive substring match on the full name).
	// A file must contain ALL terms.
	Search []string

	// PathInclude patterns match the full name only, with ** matching any
	// number of folders. Example: "Reports/**", "**/final.pdf"
	PathInclude []string
}

// IsEmpty reports whether the config selects everything.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0
}

// Apply returns the records that match c, keeping their order.
func Apply(records []models.FileRecord, c Config) []models.FileRecord {
	if c.IsEmpty() {
		return records
	}
	filtered := make([]models.FileRecord, 0, len(records))
	for _, r := range records {
		if c.Matches(r.Name) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Matches reports whether a vault name passes the filter.
func (c Config) Matches(name string) bool {
	if len(c.PathInclude) > 0 && !anyMatch(c.PathInclude, name, matchPath) {
		return false
	}

	base := path.Base(name)
	glob := func(pattern, s string) bool {
		return globMatch(pattern, s) || globMatch(pattern, base)
	}

	if anyMatch(c.Exclude, name, glob) {
		return false
	}
	if len(c.Include) > 0 && !anyMatch(c.Include, name, glob) {
		return false
	}

	lower := strings.ToLower(name)
	for _, term := range c.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func anyMatch(patterns []string, name string, match func(pattern, name string) bool) bool {
	for _, p := range patterns {
		if match(p, name) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// matchPath matches a slash-separated name against a pattern where a **
// segment stands for zero or more folders.
func matchPath(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 || !globMatch(pattern[0], name[0]) {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.csv,*.txt" -> []string{"*.csv", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}

// Validate returns the first malformed pattern error in c.
func (c Config) Validate() error {
	for _, group := range [][]string{c.Include, c.Exclude, c.PathInclude} {
		for _, p := range group {
			if _, err := path.Match(p, ""); err != nil {
				return &PatternError{Pattern: p, Err: err}
			}
		}
	}
	return nil
}

// PatternError reports a malformed glob.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "invalid pattern " + `"` + e.Pattern + `": ` + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }
