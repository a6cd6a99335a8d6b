// Package pattern compiles sshdo policy command patterns into matchers.
//
// A policy pattern is the literal command text written in a policy file,
// with runs of '#' carrying a special meaning: a single '#' stands for either a literal '#' or a run
// of one-or-more decimal (or hex) digits; a run of two or more '#' pins an
// exact width. The asymmetry is deliberate — see Compile.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Style selects how runs of '#' in a policy pattern are expanded.
type Style int

const (
	// Exact treats '#' as a literal character; no pattern has variable width.
	Exact Style = iota
	// Digits expands '#' runs against the decimal digit alphabet.
	Digits
	// Hexdigits expands '#' runs against the hexadecimal digit alphabet.
	Hexdigits
)

// ParseStyle parses a "match" directive value, case-insensitively.
func ParseStyle(s string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return Exact, true
	case "digits":
		return Digits, true
	case "hexdigits":
		return Hexdigits, true
	default:
		return 0, false
	}
}

func (s Style) String() string {
	switch s {
	case Exact:
		return "exact"
	case Digits:
		return "digits"
	case Hexdigits:
		return "hexdigits"
	default:
		return "unknown"
	}
}

// digitRunRegexp returns the regexp used to locate maximal digit runs in an
// already-observed command string — the coalescer's notion of "digit run",
// distinct from the '#' runs a policy pattern is written with.
func (s Style) digitRunRegexp() *regexp.Regexp {
	switch s {
	case Hexdigits:
		return hexRunRe
	default:
		return decRunRe
	}
}

var (
	decRunRe = regexp.MustCompile(`[#0-9]+`)
	hexRunRe = regexp.MustCompile(`[#0-9a-fA-F]+`)
)

// SplitDigitRuns splits an observed command around maximal runs drawn from
// the style's digit alphabet (plus '#' itself, so an already-generalised
// command segments the same way). Even-indexed results are literal text
// (possibly empty); odd-indexed results are digit runs. Used by the
// coalescer (§4.6) to find candidate generalisation points.
func SplitDigitRuns(cmd string, style Style) []string {
	re := style.digitRunRegexp()
	locs := re.FindAllStringIndex(cmd, -1)
	if len(locs) == 0 {
		return []string{cmd}
	}
	out := make([]string, 0, len(locs)*2+1)
	prev := 0
	for _, loc := range locs {
		out = append(out, cmd[prev:loc[0]], cmd[loc[0]:loc[1]])
		prev = loc[1]
	}
	out = append(out, cmd[prev:])
	return out
}

// Compiled is an anchored matcher for one policy pattern under one style.
type Compiled struct {
	literal   string
	isLiteral bool
	re        *regexp.Regexp
}

// Match reports whether cmd satisfies the compiled pattern.
func (c *Compiled) Match(cmd string) bool {
	if c.isLiteral {
		return cmd == c.literal
	}
	return c.re.MatchString(cmd)
}

// HasHashes reports whether the source pattern contained any '#' runs — the
// fast-path discriminator from §4.1: patterns without '#' are compared by
// byte equality regardless of style.
func HasHashes(patternText string) bool {
	return strings.ContainsRune(patternText, '#')
}

// Compile builds an anchored matcher for patternText under style. Patterns
// with no '#' runs, and all patterns under Exact style (which never
// introduces variable-width matching — §8 invariant), compile to plain
// byte-equality matchers.
func Compile(patternText string, style Style) *Compiled {
	if style == Exact || !HasHashes(patternText) {
		return &Compiled{literal: patternText, isLiteral: true}
	}

	var b strings.Builder
	b.WriteString("^")
	runes := []rune(patternText)
	for i := 0; i < len(runes); {
		if runes[i] == '#' {
			j := i
			for j < len(runes) && runes[j] == '#' {
				j++
			}
			k := j - i
			b.WriteString(expandHashRun(k, style))
			i = j
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(runes[i])))
		i++
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		// Any character we didn't explicitly handle is always valid inside
		// a Go regex once quoted; a compile failure here means a bug in
		// expandHashRun, not bad user input.
		panic(fmt.Sprintf("pattern: internal regex build failure for %q: %v", patternText, err))
	}
	return &Compiled{re: re}
}

func expandHashRun(k int, style Style) string {
	alphabet := "0-9"
	if style == Hexdigits {
		alphabet = "0-9a-fA-F"
	}
	if k == 1 {
		return fmt.Sprintf(`(?:#|[%s]+)`, alphabet)
	}
	return fmt.Sprintf(`[#%s]{%d}`, alphabet, k)
}

// Cache memoises compiled patterns per (pattern text, style) pair. Every
// caller in this module is single-threaded (§5): a forced-command
// invocation compiles patterns for one decision, and the learn/unlearn
// drivers read log files one at a time, threading a single shared Cache
// through the whole run. The mutex exists only because Cache is exported
// and nothing stops a future caller from sharing one across goroutines,
// not because any current caller does.
type Cache struct {
	mu sync.Mutex
	m  map[cacheKey]*Compiled
}

type cacheKey struct {
	pattern string
	style   Style
}

// NewCache returns an empty pattern cache.
func NewCache() *Cache {
	return &Cache{m: make(map[cacheKey]*Compiled)}
}

// Compile returns the cached matcher for (patternText, style), compiling and
// storing it on first use.
func (c *Cache) Compile(patternText string, style Style) *Compiled {
	key := cacheKey{pattern: patternText, style: style}
	c.mu.Lock()
	defer c.mu.Unlock()
	if compiled, ok := c.m[key]; ok {
		return compiled
	}
	compiled := Compile(patternText, style)
	c.m[key] = compiled
	return compiled
}

// Matches reports whether cmd matches any of the patterns under style,
// using cache to memoise compilation. Implements §4.3's pattern matching
// rule: literal presence OR any '#'-bearing pattern's compiled matcher.
func Matches(cache *Cache, patterns []string, cmd string, style Style) bool {
	for _, p := range patterns {
		if p == cmd {
			return true
		}
	}
	for _, p := range patterns {
		if !HasHashes(p) {
			continue
		}
		if cache.Compile(p, style).Match(cmd) {
			return true
		}
	}
	return false
}
