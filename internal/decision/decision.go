// Package decision implements sshdo's core policy decision function (§4.3).
package decision

import (
	"fmt"

	"github.com/raforg/sshdo/internal/pattern"
	"github.com/raforg/sshdo/internal/policyfile"
	"github.com/raforg/sshdo/internal/principal"
)

// Kind enumerates the five possible outcomes of a decision (§4.3).
type Kind int

const (
	Allowed Kind = iota
	AllowedByGroup
	Training
	TrainingByGroup
	Disallowed
)

// Outcome is the result of Decide: a Kind, plus the group name for the
// two group-mediated outcomes.
type Outcome struct {
	Kind  Kind
	Group string
}

func (o Outcome) String() string {
	switch o.Kind {
	case Allowed:
		return "allowed"
	case AllowedByGroup:
		return fmt.Sprintf("allowed (group %s)", o.Group)
	case Training:
		return "training"
	case TrainingByGroup:
		return fmt.Sprintf("training (group %s)", o.Group)
	default:
		return "disallowed"
	}
}

// IsAllowed reports whether the outcome permits exec'ing the command
// (Allowed/AllowedByGroup/Training/TrainingByGroup all do — only Training
// flavours also get logged distinctly for later learning, §1).
func (o Outcome) IsAllowed() bool {
	return o.Kind != Disallowed
}

// IsTraining reports whether the outcome should be recorded as a training
// record rather than an allowed record (§4.4's record "type" field).
func (o Outcome) IsTraining() bool {
	return o.Kind == Training || o.Kind == TrainingByGroup
}

// Decide applies §4.3's resolution order: first hit wins.
//
//  1. NegUser(user) matching -> Disallowed, regardless of any positive entry.
//  2. User(user) matching -> Allowed.
//  3. Group(g) matching, for each group in identity.Groups order -> AllowedByGroup(g).
//  4. Training set: global -> Training; NegUser(user) in training -> Disallowed;
//     User(user) in training -> Training; Group(g) in training -> TrainingByGroup(g).
//  5. Fallback -> Disallowed.
func Decide(policy *policyfile.Policy, cache *pattern.Cache, id principal.Identity, label, cmd string) Outcome {
	style := policy.Settings.Style
	tree := policy.Tree

	negUser := policyfile.Principal{Kind: policyfile.KindNegUser, Name: id.Username}
	user := policyfile.Principal{Kind: policyfile.KindUser, Name: id.Username}

	if tree.MatchesLabelOrAny(cache, negUser, label, cmd, style) {
		return Outcome{Kind: Disallowed}
	}
	if tree.MatchesLabelOrAny(cache, user, label, cmd, style) {
		return Outcome{Kind: Allowed}
	}
	for _, g := range id.Groups {
		group := policyfile.Principal{Kind: policyfile.KindGroup, Name: g}
		if tree.MatchesLabelOrAny(cache, group, label, cmd, style) {
			return Outcome{Kind: AllowedByGroup, Group: g}
		}
	}

	training := policy.Training
	if training.Global {
		return Outcome{Kind: Training}
	}
	if training.Has(negUser, label) {
		return Outcome{Kind: Disallowed}
	}
	if training.Has(user, label) {
		return Outcome{Kind: Training}
	}
	for _, g := range id.Groups {
		group := policyfile.Principal{Kind: policyfile.KindGroup, Name: g}
		if training.Has(group, label) {
			return Outcome{Kind: TrainingByGroup, Group: g}
		}
	}

	return Outcome{Kind: Disallowed}
}
