package models

import (
	"regexp"
	"strings"
)

// LocatorKind identifies the strategy a locator expression is written in.
type LocatorKind string

const (
	LocatorCSS   LocatorKind = "css"
	LocatorXPath LocatorKind = "xpath"
	LocatorText  LocatorKind = "text"
)

// LocatorCandidate is one strategy+expression pair for finding an element.
// Candidates are tried in declaration order; the first one that yields a
// usable element wins.
type LocatorCandidate struct {
	Kind       LocatorKind `json:"kind"`
	Expression string      `json:"expression"`
}

// VerifyKind selects how an injected value is checked against what the
// element reports back.
type VerifyKind string

const (
	VerifyExact    VerifyKind = "exact"
	VerifyNonEmpty VerifyKind = "non_empty"
	VerifyPattern  VerifyKind = "pattern"
)

// VerifyRule is the value-verification rule attached to a field.
type VerifyRule struct {
	Kind    VerifyKind `json:"kind"`
	Pattern string     `json:"pattern,omitempty"`
}

// Matches reports whether the value read back from the element satisfies
// the rule for the intended value.
func (r VerifyRule) Matches(got, want string) bool {
	switch r.Kind {
	case VerifyNonEmpty:
		return strings.TrimSpace(got) != ""
	case VerifyPattern:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(got)
	default:
		return got == want
	}
}

// FieldSpec describes one logical form field: its name, the ordered locator
// chain used to find it, and how a written value is verified. Specs are
// immutable configuration, defined once per target site.
type FieldSpec struct {
	Name        string             `json:"name"`
	Candidates  []LocatorCandidate `json:"candidates"`
	Verify      VerifyRule         `json:"verify"`
	Interactive bool               `json:"interactive"`
}

// CSS is a convenience constructor for the common single-expression cases
// in site mapping tables.
func CSS(expr string) LocatorCandidate {
	return LocatorCandidate{Kind: LocatorCSS, Expression: expr}
}

// XPath builds an XPath locator candidate.
func XPath(expr string) LocatorCandidate {
	return LocatorCandidate{Kind: LocatorXPath, Expression: expr}
}

// Text builds a text-content locator candidate.
func Text(expr string) LocatorCandidate {
	return LocatorCandidate{Kind: LocatorText, Expression: expr}
}
