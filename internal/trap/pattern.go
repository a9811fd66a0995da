// Package trap implements the trap engine: multi-database
// keyspace-notification subscriptions, glob pattern matching, per-handler
// semantic dedup, and notification assembly handed to the session.
package trap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// dbNumPattern extracts the database number from a keyspace-notification
// pattern of the form "__keyspace@<N>__:...".
var dbNumPattern = regexp.MustCompile(`^__keyspace@(\d+)__:`)

// CompiledPattern is one trap-handler-declared pattern, compiled to an
// anchored regular expression and routed to its database.
type CompiledPattern struct {
	Raw   string
	DB    int
	regex *regexp.Regexp
}

// Match reports whether channel matches this pattern.
func (p CompiledPattern) Match(channel string) bool {
	return p.regex.MatchString(channel)
}

// Compile escapes every literal character in pattern, then restores `*`
// (and only `*`) to the wildcard `.*`, and anchors the result with `^…$`.
// `?` and `[...]` are NOT honored as wildcards — only `*` — so this is
// narrower than the full Redis glob dialect, which also treats them as
// wildcards.
func Compile(pattern string) (CompiledPattern, error) {
	m := dbNumPattern.FindStringSubmatch(pattern)
	if m == nil {
		return CompiledPattern{}, fmt.Errorf("trap: pattern %q does not declare a __keyspace@<N>__ prefix", pattern)
	}
	db, err := strconv.Atoi(m[1])
	if err != nil {
		return CompiledPattern{}, fmt.Errorf("trap: pattern %q has invalid db number: %w", pattern, err)
	}

	escaped := regexp.QuoteMeta(pattern)
	// QuoteMeta turned every "*" into "\*"; restore only that wildcard.
	restored := strings.ReplaceAll(escaped, `\*`, `.*`)
	anchored := "^" + restored + "$"

	re, err := regexp.Compile(anchored)
	if err != nil {
		return CompiledPattern{}, fmt.Errorf("trap: pattern %q failed to compile: %w", pattern, err)
	}
	return CompiledPattern{Raw: pattern, DB: db, regex: re}, nil
}
