package services

import (
	"fmt"
	"log"
	"time"

	"visitauto/models"
)

const (
	minCandidateBudget = 150 * time.Millisecond
	maxCandidateBudget = 800 * time.Millisecond
)

// ResolvedElement is a live element handle plus the strategy that found it,
// kept for diagnostics. Valid for one logical operation only.
type ResolvedElement struct {
	Element
	Strategy       models.LocatorCandidate
	CandidateIndex int
}

// Resolver walks a field's locator chain in declaration order and returns
// the first candidate that yields a usable element. Fallthrough happens on
// lookup failure only: once a candidate matches, later candidates are never
// tried, even if interaction with the match fails afterwards.
type Resolver struct {
	Browser Browser
}

func NewResolver(browser Browser) *Resolver {
	return &Resolver{Browser: browser}
}

// Resolve tries every candidate of the field within the overall timeout.
func (r *Resolver) Resolve(spec models.FieldSpec, timeout time.Duration) (*ResolvedElement, error) {
	return r.ResolveSkipping(spec, 0, timeout)
}

// ResolveSkipping resumes the chain from a candidate index. Callers use it
// to retry resolution with the remaining candidates after a post-match
// interaction failure; the resolver itself never does that implicitly.
func (r *Resolver) ResolveSkipping(spec models.FieldSpec, from int, timeout time.Duration) (*ResolvedElement, error) {
	if len(spec.Candidates) == 0 || from >= len(spec.Candidates) {
		return nil, fieldErr(spec.Name, "", fmt.Errorf("%w: no locator candidates left", ErrElementNotFound))
	}

	budget := perCandidateBudget(timeout, len(spec.Candidates)-from)
	deadline := time.Now().Add(timeout)

	for i := from; i < len(spec.Candidates); i++ {
		cand := spec.Candidates[i]
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if remaining < budget {
			budget = remaining
		}

		el, err := r.Browser.Find(cand.Kind, cand.Expression, budget)
		if err != nil {
			continue
		}
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		if spec.Interactive {
			enabled, err := el.IsEnabled()
			if err != nil || !enabled {
				continue
			}
		}

		if i > 0 {
			log.Printf("Field %q resolved by fallback candidate %d (%s %s)", spec.Name, i, cand.Kind, cand.Expression)
		}
		return &ResolvedElement{Element: el, Strategy: cand, CandidateIndex: i}, nil
	}

	return nil, fieldErr(spec.Name, describeChain(spec.Candidates[from:]),
		fmt.Errorf("%w: exhausted %d candidate(s)", ErrElementNotFound, len(spec.Candidates)-from))
}

func perCandidateBudget(timeout time.Duration, candidates int) time.Duration {
	if candidates < 1 {
		candidates = 1
	}
	budget := timeout / time.Duration(candidates)
	if budget < minCandidateBudget {
		budget = minCandidateBudget
	}
	if budget > maxCandidateBudget {
		budget = maxCandidateBudget
	}
	return budget
}

func describeChain(candidates []models.LocatorCandidate) string {
	out := ""
	for i, c := range candidates {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s:%s", c.Kind, c.Expression)
	}
	return out
}
