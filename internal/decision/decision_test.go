package decision

import (
	"testing"

	"github.com/raforg/sshdo/internal/pattern"
	"github.com/raforg/sshdo/internal/policyfile"
	"github.com/raforg/sshdo/internal/principal"
)

func newPolicy() *policyfile.Policy {
	return &policyfile.Policy{
		Tree:     policyfile.NewTree(),
		Training: policyfile.NewTrainingSet(),
		Settings: policyfile.DefaultSettings(policyfile.DefaultMainPath),
	}
}

func TestDecideNegUserBeatsEverythingElse(t *testing.T) {
	policy := newPolicy()
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindUser, Name: "alice"}, policyfile.AnyLabel, "rm -rf /")
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindNegUser, Name: "alice"}, policyfile.AnyLabel, "rm -rf /")

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "rm -rf /")
	if out.Kind != Disallowed {
		t.Errorf("outcome = %v, want Disallowed (neguser must win)", out)
	}
}

func TestDecideUserBeatsGroup(t *testing.T) {
	policy := newPolicy()
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindUser, Name: "alice"}, policyfile.AnyLabel, "uptime")
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindGroup, Name: "wheel"}, policyfile.AnyLabel, "uptime")

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"wheel"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "uptime")
	if out.Kind != Allowed {
		t.Errorf("outcome = %v, want Allowed (direct user entry beats group)", out)
	}
}

func TestDecideGroupOrderIsOSOrder(t *testing.T) {
	policy := newPolicy()
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindGroup, Name: "docker"}, policyfile.AnyLabel, "uptime")

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice", "wheel", "docker"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "uptime")
	if out.Kind != AllowedByGroup || out.Group != "docker" {
		t.Errorf("outcome = %v, want AllowedByGroup(docker)", out)
	}
}

func TestDecideGlobalTraining(t *testing.T) {
	policy := newPolicy()
	policy.Training.Global = true

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "whoami")
	if out.Kind != Training {
		t.Errorf("outcome = %v, want Training", out)
	}
	if !out.IsAllowed() {
		t.Error("training outcomes must still exec the command")
	}
	if !out.IsTraining() {
		t.Error("IsTraining should be true")
	}
}

func TestDecideTrainingNegUserStillDisallows(t *testing.T) {
	policy := newPolicy()
	policy.Training.Global = true
	policy.Training.Add(policyfile.Principal{Kind: policyfile.KindNegUser, Name: "alice"}, policyfile.AnyLabel)

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "whoami")
	if out.Kind != Disallowed {
		t.Errorf("outcome = %v, want Disallowed -- -user training entry overrides global training", out)
	}
}

func TestDecideTrainingByGroupWhenNoDirectUserTraining(t *testing.T) {
	policy := newPolicy()
	policy.Training.Add(policyfile.Principal{Kind: policyfile.KindGroup, Name: "wheel"}, policyfile.AnyLabel)

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice", "wheel"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "whoami")
	if out.Kind != TrainingByGroup || out.Group != "wheel" {
		t.Errorf("outcome = %v, want TrainingByGroup(wheel)", out)
	}
}

func TestDecideFallbackDisallowed(t *testing.T) {
	policy := newPolicy()
	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice"}}
	out := Decide(policy, cache, id, policyfile.AnyLabel, "rm -rf /")
	if out.Kind != Disallowed || out.IsAllowed() {
		t.Errorf("outcome = %v, want Disallowed with no matching rule at all", out)
	}
}

func TestDecideLabelSpecificEntryDoesNotFallThroughToAny(t *testing.T) {
	policy := newPolicy()
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindUser, Name: "alice"}, "prod", "uptime")
	policy.Tree.Add(policyfile.Principal{Kind: policyfile.KindUser, Name: "alice"}, policyfile.AnyLabel, "whoami")

	cache := pattern.NewCache()
	id := principal.Identity{Username: "alice", Groups: []string{"alice"}}

	// "prod" has its own entry set, which does not contain "whoami" -- this
	// must not fall back to the any-label set that does.
	out := Decide(policy, cache, id, "prod", "whoami")
	if out.Kind != Disallowed {
		t.Errorf("outcome = %v, want Disallowed (label-specific entry present, non-matching)", out)
	}
}
