package policyfile

// CheckClashes implements §4.2's clash detection: a positive
// user/user-label authorisation and a negative -user/-user-label
// authorisation for the same command, accounting for the "any label"
// wildcard on either side, are reported as a warning (the runtime decision
// engine still denies per §4.3 — NegUser always wins). The same rule
// applies to the training set, minus the per-command dimension.
func CheckClashes(policy *Policy) []Issue {
	var issues []Issue
	issues = append(issues, checkAuthClashes(policy.Tree)...)
	issues = append(issues, checkTrainingClashes(policy.Training)...)
	return issues
}

func checkAuthClashes(t *Tree) []Issue {
	type posNeg struct {
		pos map[string][]string // label -> patterns
		neg map[string][]string
	}
	byName := make(map[string]*posNeg)

	for _, key := range t.Keys() {
		if key.Principal.Kind == KindGroup {
			continue
		}
		entry := byName[key.Principal.Name]
		if entry == nil {
			entry = &posNeg{pos: map[string][]string{}, neg: map[string][]string{}}
			byName[key.Principal.Name] = entry
		}
		patterns := t.Patterns(key.Principal, key.Label)
		if key.Principal.Kind == KindUser {
			entry.pos[key.Label] = patterns
		} else {
			entry.neg[key.Label] = patterns
		}
	}

	var issues []Issue
	for name, entry := range byName {
		for posLabel, posPatterns := range entry.pos {
			for negLabel, negPatterns := range entry.neg {
				if !labelsOverlap(posLabel, negLabel) {
					continue
				}
				for _, cmd := range posPatterns {
					if containsString(negPatterns, cmd) {
						issues = append(issues, warnf("", 0,
							"user %q has both an allow and a deny for %q (labels %q/%q)",
							name, cmd, displayLabel(posLabel), displayLabel(negLabel)))
					}
				}
			}
		}
	}
	return issues
}

func checkTrainingClashes(ts *TrainingSet) []Issue {
	type posNeg struct {
		pos map[string]struct{}
		neg map[string]struct{}
	}
	byName := make(map[string]*posNeg)

	for p, labels := range ts.entries {
		if p.Kind == KindGroup {
			continue
		}
		entry := byName[p.Name]
		if entry == nil {
			entry = &posNeg{pos: map[string]struct{}{}, neg: map[string]struct{}{}}
			byName[p.Name] = entry
		}
		for label := range labels {
			if p.Kind == KindUser {
				entry.pos[label] = struct{}{}
			} else {
				entry.neg[label] = struct{}{}
			}
		}
	}

	var issues []Issue
	for name, entry := range byName {
		for posLabel := range entry.pos {
			for negLabel := range entry.neg {
				if labelsOverlap(posLabel, negLabel) {
					issues = append(issues, warnf("", 0,
						"user %q has both a training allow and a training deny (labels %q/%q)",
						name, displayLabel(posLabel), displayLabel(negLabel)))
				}
			}
		}
	}
	return issues
}

func labelsOverlap(a, b string) bool {
	return a == b || a == AnyLabel || b == AnyLabel
}

func displayLabel(l string) string {
	if l == AnyLabel {
		return "*"
	}
	return l
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
