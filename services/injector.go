package services

import (
	"fmt"
	"log"

	"visitauto/models"
)

// Injection scripts. Reactive frameworks keep their model state detached
// from the DOM's literal value attribute, so a bare property write is
// invisible to them until the right synthetic events are dispatched.
const (
	scriptAssignAndNotify = `(el, value) => {
		el.value = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.blur();
	}`

	scriptAssignBracketed = `(el, value) => {
		el.focus();
		el.value = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('keyup', { bubbles: true }));
		el.blur();
	}`
)

// Injector writes a value into a resolved element and verifies the element
// actually took it. It escalates through three tiers, stopping at the first
// whose result verifies; exhausting all three is a hard field-level error.
type Injector struct{}

func NewInjector() *Injector {
	return &Injector{}
}

// SetValue injects value and verifies it against the field's rule.
func (inj *Injector) SetValue(el Element, field string, value string, rule models.VerifyRule) error {
	tiers := []struct {
		name  string
		apply func(Element, string) error
	}{
		{"native", inj.nativeType},
		{"scripted", inj.scriptedAssign},
		{"scripted+bracketed", inj.scriptedAssignBracketed},
	}

	var lastRead string
	for i, tier := range tiers {
		if err := tier.apply(el, value); err != nil {
			log.Printf("Field %q tier %d (%s) failed to apply: %v", field, i+1, tier.name, err)
			continue
		}
		got, err := el.InputValue()
		if err != nil {
			log.Printf("Field %q tier %d (%s) read-back failed: %v", field, i+1, tier.name, err)
			continue
		}
		lastRead = got
		if rule.Matches(got, value) {
			if i > 0 {
				log.Printf("Field %q verified after escalation to tier %d (%s)", field, i+1, tier.name)
			}
			return nil
		}
	}

	return fieldErr(field, "", fmt.Errorf("%w: wanted %q, element reports %q", ErrVerificationFailed, value, lastRead))
}

// nativeType is the closest analogue of real user input: select-all, delete,
// then a character stream. Textareas take content assignment instead of a
// keystroke stream, which some multi-line widgets drop characters from.
func (inj *Injector) nativeType(el Element, value string) error {
	tag, err := el.TagName()
	if err != nil {
		return err
	}
	if tag == "textarea" {
		return el.FillText(value)
	}

	if err := el.Click(); err != nil {
		return err
	}
	if err := el.Press("Control+a"); err != nil {
		return err
	}
	if err := el.Press("Delete"); err != nil {
		return err
	}
	return el.TypeText(value)
}

// scriptedAssign covers frameworks that listen for change events rather
// than keystrokes.
func (inj *Injector) scriptedAssign(el Element, value string) error {
	_, err := el.Evaluate(scriptAssignAndNotify, value)
	return err
}

// scriptedAssignBracketed adds focus/blur bracketing and a keyup, for
// frameworks with finer-grained validation hooks.
func (inj *Injector) scriptedAssignBracketed(el Element, value string) error {
	_, err := el.Evaluate(scriptAssignBracketed, value)
	return err
}
