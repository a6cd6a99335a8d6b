// Package coalesce implements the generalisation pass shared by the learn
// and unlearn drivers (§4.6): it takes a set of observed commands, each
// annotated per principal with an allow/disallow mark, and merges commands
// that differ only in their digit runs into a single digit-pattern.
package coalesce

import (
	"sort"
	"strings"

	"github.com/raforg/sshdo/internal/pattern"
)

// Mark is one observation's verdict for a (command, principal) pair.
type Mark int

const (
	Allow Mark = iota
	Disallow
)

// Mode selects the tie-break rule §4.6 step 3 applies when the same
// principal is observed with both marks across commands being merged:
// disallow wins during learn, allow wins during unlearn.
type Mode int

const (
	Learn Mode = iota
	Unlearn
)

func mergeMark(a, b Mark, mode Mode) Mark {
	if a == b {
		return a
	}
	if mode == Learn {
		return Disallow
	}
	return Allow
}

// Observations is obs[cmd][principal] from §4.6/§4.7/§4.8.
type Observations map[string]map[string]Mark

// elemKind distinguishes a literal text run from a digit run within a
// segmented command (§4.6 step 1).
type elemKind int

const (
	literalElem elemKind = iota
	digitElem
)

type elem struct {
	kind elemKind
	text string // literal text (literalElem) or the original digit run text (digitElem)
}

func segment(cmd string, style pattern.Style) []elem {
	parts := pattern.SplitDigitRuns(cmd, style)
	elems := make([]elem, len(parts))
	for i, p := range parts {
		if i%2 == 0 {
			elems[i] = elem{kind: literalElem, text: p}
		} else {
			elems[i] = elem{kind: digitElem, text: p}
		}
	}
	return elems
}

// digitCandidates tracks, for one digit-run slot, which generalisations
// remain consistent across every command merged into this entry so far.
type digitCandidates struct {
	keepLiteral bool
	literal     string
	keepFixed   bool
	width       int
}

func newDigitCandidates(d string) digitCandidates {
	return digitCandidates{
		keepLiteral: true,
		literal:     d,
		keepFixed:   len(d) > 1,
		width:       len(d),
	}
}

// merge narrows dc to what's common with other, per §4.6 step 3: keep the
// literal only if both sides agree on it; keep the fixed-width form only
// if both sides agree on width; the bare '#' form is always available and
// isn't tracked explicitly.
func (dc digitCandidates) merge(other digitCandidates) digitCandidates {
	out := digitCandidates{}
	out.keepLiteral = dc.keepLiteral && other.keepLiteral && dc.literal == other.literal
	if out.keepLiteral {
		out.literal = dc.literal
	}
	out.keepFixed = dc.keepFixed && other.keepFixed && dc.width == other.width
	if out.keepFixed {
		out.width = dc.width
	}
	return out
}

// render picks the tightest surviving form for this slot (§4.6 step 4).
func (dc digitCandidates) render(style pattern.Style) string {
	if dc.keepLiteral {
		return dc.literal
	}
	if dc.keepFixed {
		return strings.Repeat("#", dc.width)
	}
	return "#"
}

type entry struct {
	lits      []elem // the fixed literal/digit-kind shape; literal text never changes after creation
	slots     []digitCandidates
	marks     map[string]Mark
	sources   map[string]struct{}
}

func newEntry(cmd string, style pattern.Style, marks map[string]Mark) *entry {
	elems := segment(cmd, style)
	e := &entry{
		lits:    elems,
		marks:   make(map[string]Mark),
		sources: map[string]struct{}{cmd: {}},
	}
	for _, el := range elems {
		if el.kind == digitElem {
			e.slots = append(e.slots, newDigitCandidates(el.text))
		}
	}
	for p, m := range marks {
		e.marks[p] = m
	}
	return e
}

// similar implements §4.6 step 2.
func similar(a, b []elem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].kind != b[i].kind {
			return false
		}
		if a[i].kind == literalElem && a[i].text != b[i].text {
			return false
		}
	}
	return true
}

// mergeInto folds o's marks and digit-slot candidates into e, per §4.6
// step 3. o and e must already be known similar.
func (e *entry) mergeInto(o *entry, mode Mode) {
	for i := range e.slots {
		e.slots[i] = e.slots[i].merge(o.slots[i])
	}
	for p, m := range o.marks {
		if existing, ok := e.marks[p]; ok {
			e.marks[p] = mergeMark(existing, m, mode)
		} else {
			e.marks[p] = m
		}
	}
	for src := range o.sources {
		e.sources[src] = struct{}{}
	}
}

func (e *entry) pattern(style pattern.Style) string {
	var b strings.Builder
	slot := 0
	for _, el := range e.lits {
		if el.kind == literalElem {
			b.WriteString(el.text)
			continue
		}
		b.WriteString(e.slots[slot].render(style))
		slot++
	}
	return b.String()
}

// Coalesce runs §4.6's algorithm over obs and returns the generalised
// observation set. Under Exact style it is the identity (digit patterns
// have no meaning there).
func Coalesce(obs Observations, style pattern.Style, mode Mode) Observations {
	out := make(Observations)
	if style == pattern.Exact {
		for cmd, marks := range obs {
			m := make(map[string]Mark, len(marks))
			for p, v := range marks {
				m[p] = v
			}
			out[cmd] = m
		}
		return out
	}

	cmds := make([]string, 0, len(obs))
	for cmd := range obs {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)

	var working []*entry
	for _, cmd := range cmds {
		fresh := newEntry(cmd, style, obs[cmd])

		var matched bool
		for _, existing := range working {
			if similar(existing.lits, fresh.lits) {
				existing.mergeInto(fresh, mode)
				matched = true
			}
		}
		if !matched {
			working = append(working, fresh)
		}
	}

	for _, e := range working {
		p := e.pattern(style)
		if dst, ok := out[p]; ok {
			for principal, m := range e.marks {
				if existing, ok := dst[principal]; ok {
					dst[principal] = mergeMark(existing, m, mode)
				} else {
					dst[principal] = m
				}
			}
		} else {
			dst := make(map[string]Mark, len(e.marks))
			for principal, m := range e.marks {
				dst[principal] = m
			}
			out[p] = dst
		}
	}
	return out
}
