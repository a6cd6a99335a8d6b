package policyfile

import (
	"fmt"
	"strings"
)

// ParsePrincipalToken parses one space-separated principal item from a
// directive's principal list: "+group", "-user", or "user", each optionally
// suffixed "/label" (§4.2).
func ParsePrincipalToken(tok string) (Principal, string, error) {
	if tok == "" {
		return Principal{}, "", fmt.Errorf("empty principal")
	}

	kind := KindUser
	body := tok
	switch tok[0] {
	case '+':
		kind = KindGroup
		body = tok[1:]
	case '-':
		kind = KindNegUser
		body = tok[1:]
	}

	name := body
	label := AnyLabel
	if idx := strings.IndexByte(body, '/'); idx >= 0 {
		name = body[:idx]
		label = body[idx+1:]
	}

	if name == "" {
		return Principal{}, "", fmt.Errorf("principal %q has an empty name", tok)
	}
	if kind == KindGroup && label != AnyLabel {
		// Groups can't authenticate a key, so they carry no label of their
		// own, but the grammar doesn't forbid writing one; spec is silent,
		// so we accept it and simply ignore it for matching purposes by
		// folding it back to AnyLabel -- a group's authorisation applies
		// across every label a member might connect with.
		label = AnyLabel
	}

	return Principal{Kind: kind, Name: name}, label, nil
}

// ParsePrincipalList parses a whole space-separated principal list as found
// before the ':' in an authorisation directive, or after "training".
func ParsePrincipalList(s string) ([]PrincipalLabel, error) {
	fields := strings.Fields(s)
	out := make([]PrincipalLabel, 0, len(fields))
	for _, f := range fields {
		p, label, err := ParsePrincipalToken(f)
		if err != nil {
			return nil, err
		}
		out = append(out, PrincipalLabel{Principal: p, Label: label})
	}
	return out, nil
}

// PrincipalLabel pairs a principal with the label it was written with.
type PrincipalLabel struct {
	Principal Principal
	Label     string
}

// String renders a principal the way it would appear in a policy file,
// used when rendering learn/unlearn output (§4.7, §4.8).
func (p Principal) String() string {
	switch p.Kind {
	case KindGroup:
		return "+" + p.Name
	case KindNegUser:
		return "-" + p.Name
	default:
		return p.Name
	}
}

// StringWithLabel renders "principal" or "principal/label".
func (p Principal) StringWithLabel(label string) string {
	if label == AnyLabel {
		return p.String()
	}
	return p.String() + "/" + label
}
