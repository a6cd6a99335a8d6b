package policyfile

import (
	"sort"

	"github.com/raforg/sshdo/internal/pattern"
)

// PrincipalKind tags the three shapes a principal can take (§3).
type PrincipalKind int

const (
	// KindUser is a plain local username.
	KindUser PrincipalKind = iota
	// KindNegUser is a negated username ("-user"); authorises nothing by
	// itself, but rules out a match that would otherwise succeed.
	KindNegUser
	// KindGroup is a local group name. There is no negated-group form.
	KindGroup
)

func (k PrincipalKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindNegUser:
		return "neguser"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Principal identifies who a directive applies to.
type Principal struct {
	Kind PrincipalKind
	Name string
}

// AnyLabel is the sentinel label-or-all key: "no label supplied" that also
// falls back for any concrete label absent a more specific entry (§3).
const AnyLabel = ""

// principalKey is the map key used inside Tree: principal plus label.
type principalKey struct {
	Principal
	Label string
}

// Tree is the policy tree: principal -> label-or-all -> set of command
// patterns (§3). Patterns are stored verbatim, in insertion order, so
// clash detection and rendering remain deterministic.
type Tree struct {
	entries map[principalKey][]string
}

// NewTree returns an empty policy tree.
func NewTree() *Tree {
	return &Tree{entries: make(map[principalKey][]string)}
}

// Add appends cmd to the pattern set for (principal, label). Duplicate
// patterns for the same key are kept verbatim — the source line is what
// matters for clash detection and for "command patterns are stored
// verbatim; no canonicalisation" (§3 invariant 2).
func (t *Tree) Add(p Principal, label, cmd string) {
	key := principalKey{Principal: p, Label: label}
	t.entries[key] = append(t.entries[key], cmd)
}

// Patterns returns the stored pattern set for (principal, label), or nil if
// there is none.
func (t *Tree) Patterns(p Principal, label string) []string {
	return t.entries[principalKey{Principal: p, Label: label}]
}

// Has reports whether (principal, label) has any entries at all.
func (t *Tree) Has(p Principal, label string) bool {
	_, ok := t.entries[principalKey{Principal: p, Label: label}]
	return ok
}

// Matches reports whether cmd matches the pattern set for (principal,
// label) under the given style, consulting the cache for '#'-bearing
// patterns (§4.3's pattern-matching rule).
func (t *Tree) Matches(cache *pattern.Cache, p Principal, label, cmd string, style pattern.Style) bool {
	patterns := t.Patterns(p, label)
	if len(patterns) == 0 {
		return false
	}
	return pattern.Matches(cache, patterns, cmd, style)
}

// MatchesLabelOrAny implements §4.3's label lookup rule: check the concrete
// label first, then fall back to AnyLabel, first non-empty match wins. Here
// "non-empty" means "the entry exists at all" — an existing but
// non-matching entry does NOT fall through to AnyLabel, mirroring how the
// decision engine treats a present-but-non-matching pattern set as a
// definitive miss for that principal/label pairing.
func (t *Tree) MatchesLabelOrAny(cache *pattern.Cache, p Principal, label, cmd string, style pattern.Style) bool {
	if label != AnyLabel && t.Has(p, label) {
		return t.Matches(cache, p, label, cmd, style)
	}
	return t.Matches(cache, p, AnyLabel, cmd, style)
}

// Principals returns every distinct principal present in the tree, sorted
// for deterministic iteration (group membership resolution in §4.3 needs a
// stable order only for reproducible tests; the decision itself does not
// depend on map iteration order).
func (t *Tree) Principals() []Principal {
	seen := make(map[Principal]struct{})
	for key := range t.entries {
		seen[key.Principal] = struct{}{}
	}
	out := make([]Principal, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Keys returns every (principal, label) pair with a non-empty pattern set,
// in deterministic order. Used by the unlearn driver to enumerate existing
// authorisations (§4.8).
func (t *Tree) Keys() []struct {
	Principal Principal
	Label     string
} {
	out := make([]struct {
		Principal Principal
		Label     string
	}, 0, len(t.entries))
	for key := range t.entries {
		out = append(out, struct {
			Principal Principal
			Label     string
		}{key.Principal, key.Label})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Principal.Kind != out[j].Principal.Kind {
			return out[i].Principal.Kind < out[j].Principal.Kind
		}
		if out[i].Principal.Name != out[j].Principal.Name {
			return out[i].Principal.Name < out[j].Principal.Name
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// TrainingSet is the label-less shape from §3: principal -> label-or-all,
// with no command level. Global training (no principals at all) is
// represented by the Global flag rather than a sentinel map entry, per §9's
// "no sentinels in the hot lookup path" redesign note.
type TrainingSet struct {
	Global bool
	// entries maps a principal to the set of labels it is under training
	// for (AnyLabel included as a normal member, not a sentinel).
	entries map[Principal]map[string]struct{}
}

// NewTrainingSet returns an empty, non-global training set.
func NewTrainingSet() *TrainingSet {
	return &TrainingSet{entries: make(map[Principal]map[string]struct{})}
}

// Add records that p is under training for label.
func (t *TrainingSet) Add(p Principal, label string) {
	if t.entries[p] == nil {
		t.entries[p] = make(map[string]struct{})
	}
	t.entries[p][label] = struct{}{}
}

// Has reports whether (p, label) or (p, AnyLabel) is present, matching
// §4.3's label-or-any fallback for the training set.
func (t *TrainingSet) Has(p Principal, label string) bool {
	labels := t.entries[p]
	if labels == nil {
		return false
	}
	if label != AnyLabel {
		if _, ok := labels[label]; ok {
			return true
		}
	}
	_, ok := labels[AnyLabel]
	return ok
}
