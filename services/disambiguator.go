package services

import (
	"fmt"

	"visitauto/models"
)

// ContainerSignature is the structural fingerprint used to tell apart
// repeated blocks that share one template. In this domain the authoritative
// discriminator is the number of phone sub-inputs inside the block: the
// visited-person block renders a 3-segment phone number, visitor blocks a
// 2-segment one.
type ContainerSignature struct {
	PhoneInputCount int
	// MarkerSelector, when set, must additionally be present in the block.
	MarkerSelector string
}

// LabeledContainer is one classified repeated block.
type LabeledContainer struct {
	Element
	PhoneInputs int
	HasMarker   bool
	Role        string
}

// Disambiguator classifies repeated sub-form blocks by structural signature
// instead of DOM position. Positional indexing silently fills the wrong
// block when insertion order or layout shifts, so every selection here
// either identifies exactly one container or fails closed.
type Disambiguator struct {
	Browser Browser
	// ContainerSelector enumerates candidate blocks, e.g. "ul:has(li.list_1)".
	ContainerSelector string
	// PhoneSelector counts phone sub-inputs within one block.
	PhoneSelector string
	// NameSelector locates the name sub-input, used to spot freshly added
	// (still empty) blocks.
	NameSelector string
	// Roles maps a phone-input count to a role label, e.g. {3: "visited-person", 2: "visitor"}.
	Roles map[int]string
}

// Classify inspects every candidate container on the page and labels it by
// its structural signature. Derived state only; recomputed per attempt.
func (d *Disambiguator) Classify(sig ContainerSignature) ([]LabeledContainer, error) {
	containers, err := d.Browser.FindAll(models.LocatorCSS, d.ContainerSelector)
	if err != nil {
		return nil, fmt.Errorf("could not enumerate containers %q: %v", d.ContainerSelector, err)
	}
	return d.classify(containers, sig)
}

func (d *Disambiguator) classify(containers []Element, sig ContainerSignature) ([]LabeledContainer, error) {
	labeled := make([]LabeledContainer, 0, len(containers))
	for _, c := range containers {
		phones, err := c.QueryAll(d.PhoneSelector)
		if err != nil {
			continue
		}
		lc := LabeledContainer{Element: c, PhoneInputs: len(phones)}
		if sig.MarkerSelector != "" {
			markers, err := c.QueryAll(sig.MarkerSelector)
			lc.HasMarker = err == nil && len(markers) > 0
		}
		if role, ok := d.Roles[lc.PhoneInputs]; ok {
			lc.Role = role
		}
		labeled = append(labeled, lc)
	}
	return labeled, nil
}

// Select returns the single container matching the signature. Zero or
// multiple matches refuse to guess and report an ambiguous-structure error.
func (d *Disambiguator) Select(sig ContainerSignature) (*LabeledContainer, error) {
	labeled, err := d.Classify(sig)
	if err != nil {
		return nil, err
	}
	matches := matching(labeled, sig)
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w: %d container(s) with %d phone inputs (of %d total)",
			ErrAmbiguousStructure, len(matches), sig.PhoneInputCount, len(labeled))
	}
	return &matches[0], nil
}

// NewlyAdded re-scans after an add-entry action and returns the freshly
// appended container of the expected role: the sole matching block whose
// name sub-field is still empty. Insertion order is not trusted.
func (d *Disambiguator) NewlyAdded(sig ContainerSignature) (*LabeledContainer, error) {
	labeled, err := d.Classify(sig)
	if err != nil {
		return nil, err
	}

	var empty []LabeledContainer
	for _, lc := range matching(labeled, sig) {
		names, err := lc.QueryAll(d.NameSelector)
		if err != nil || len(names) == 0 {
			continue
		}
		value, err := names[0].InputValue()
		if err == nil && value == "" {
			empty = append(empty, lc)
		}
	}
	if len(empty) != 1 {
		return nil, fmt.Errorf("%w: %d empty container(s) with %d phone inputs after add",
			ErrAmbiguousStructure, len(empty), sig.PhoneInputCount)
	}
	return &empty[0], nil
}

func matching(labeled []LabeledContainer, sig ContainerSignature) []LabeledContainer {
	var out []LabeledContainer
	for _, lc := range labeled {
		if lc.PhoneInputs != sig.PhoneInputCount {
			continue
		}
		if sig.MarkerSelector != "" && !lc.HasMarker {
			continue
		}
		out = append(out, lc)
	}
	return out
}
