package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"visitauto/models"
)

// PhoneSegment names which piece of a split phone number a binding receives.
type PhoneSegment int

const (
	PhoneWhole PhoneSegment = iota
	PhoneMiddle
	PhoneLast
)

// FieldBinding ties one record column to one form field. Bindings with a
// ContainerRole are resolved inside the structurally matching container
// rather than page-wide.
type FieldBinding struct {
	RecordKey string
	Spec      models.FieldSpec
	Required  bool
	// Phone selects a segment of a 3-part phone number; PhoneWhole passes
	// the raw value through.
	Phone PhoneSegment
	// Confirm runs the duplicate-identifier protocol after injection.
	Confirm bool
	// ContainerRole scopes resolution to the container the disambiguator
	// labels with this role ("visited-person", "visitor").
	ContainerRole string
	// ContainerSelector is the sub-input selector inside the container.
	ContainerSelector string
}

// SiteMapping is the full declarative description of one target site: where
// to go, how to get past the pre-form steps, and how record columns land on
// form fields.
type SiteMapping struct {
	Name     string
	StartURL string
	// SessionSteps run once after navigation: terms agreement, motive
	// selection, anything between the landing page and a fillable form.
	SessionSteps []SessionStep
	Bindings     []FieldBinding
	Confirm      ConfirmConfig
	// Containers configures structural disambiguation of repeated blocks.
	Containers ContainerConfig
	// CompanionPrefix: record keys "<prefix>N_name" style columns describe
	// extra visitors added via AddButton.
	CompanionPrefix string
	AddButton       models.FieldSpec
	Submit          models.FieldSpec
	// SubmitConfirmText labels of post-submit dialogs to click through.
	SubmitConfirmText []string
}

// SessionStep is one pre-form action. Steps with a value inject it through
// the injector (login credentials, motive text); steps without one click the
// element. Optional steps are skipped silently when absent.
type SessionStep struct {
	Name     string
	Spec     models.FieldSpec
	Optional bool
	// Value is injected verbatim into the resolved element.
	Value string
	// ValueEnv sources the injected value from the environment instead, so
	// credentials stay out of mapping tables.
	ValueEnv string
	// Delay after the step, for page transitions.
	Delay time.Duration
}

// ContainerConfig carries the disambiguator wiring for one site.
type ContainerConfig struct {
	ContainerSelector string
	PhoneSelector     string
	NameSelector      string
	Roles             map[int]string
	// Signatures maps role name to the structural signature that selects it.
	Signatures map[string]ContainerSignature
}

// FormFillerService implements FormFiller for one declaratively mapped site.
type FormFillerService struct {
	Browser  Browser
	Resolver *Resolver
	Injector *Injector
	Confirm  *ConfirmProtocol
	Mapping  SiteMapping

	disambiguator *Disambiguator
}

func NewFormFillerService(b Browser, mapping SiteMapping) *FormFillerService {
	resolver := &Resolver{Browser: b}
	injector := &Injector{}
	return &FormFillerService{
		Browser:  b,
		Resolver: resolver,
		Injector: injector,
		Confirm:  &ConfirmProtocol{Browser: b, Resolver: resolver, Injector: injector},
		Mapping:  mapping,
		disambiguator: &Disambiguator{
			Browser:           b,
			ContainerSelector: mapping.Containers.ContainerSelector,
			PhoneSelector:     mapping.Containers.PhoneSelector,
			NameSelector:      mapping.Containers.NameSelector,
			Roles:             mapping.Containers.Roles,
		},
	}
}

// EstablishSession navigates to the site and walks the pre-form steps.
func (f *FormFillerService) EstablishSession(ctx context.Context) error {
	log.Printf("Establishing session for %s at %s", f.Mapping.Name, f.Mapping.StartURL)
	if err := f.Browser.Navigate(f.Mapping.StartURL); err != nil {
		return fmt.Errorf("could not open %s: %v", f.Mapping.StartURL, err)
	}
	return f.runSessionSteps(ctx)
}

func (f *FormFillerService) runSessionSteps(ctx context.Context) error {
	for _, step := range f.Mapping.SessionSteps {
		if err := ctx.Err(); err != nil {
			return err
		}

		value := step.Value
		if step.ValueEnv != "" {
			value = os.Getenv(step.ValueEnv)
			if value == "" {
				if step.Optional {
					log.Printf("Optional step %q skipped: %s is not set", step.Name, step.ValueEnv)
					continue
				}
				return fmt.Errorf("%w: session step %q needs %s in the environment",
					ErrSessionEstablishment, step.Name, step.ValueEnv)
			}
		}

		el, err := f.Resolver.Resolve(step.Spec, 5*time.Second)
		if err != nil {
			if step.Optional {
				log.Printf("Optional step %q skipped: element not present", step.Name)
				continue
			}
			return fmt.Errorf("session step %q: %v", step.Name, err)
		}

		if value != "" {
			if err := f.Injector.SetValue(el.Element, step.Spec.Name, value, step.Spec.Verify); err != nil {
				if step.Optional {
					continue
				}
				return fmt.Errorf("session step %q: %v", step.Name, err)
			}
		} else if err := el.Click(); err != nil {
			if step.Optional {
				continue
			}
			return fmt.Errorf("session step %q: could not click: %v", step.Name, err)
		}

		log.Printf("Session step %q done", step.Name)
		if step.Delay > 0 {
			time.Sleep(step.Delay)
		}
	}
	return nil
}

// ResetForm re-navigates to the start URL and replays the pre-form steps,
// giving every record a pristine form.
func (f *FormFillerService) ResetForm(ctx context.Context) error {
	if err := f.Browser.Navigate(f.Mapping.StartURL); err != nil {
		return fmt.Errorf("could not re-open %s: %v", f.Mapping.StartURL, err)
	}
	return f.runSessionSteps(ctx)
}

// FillAndSubmit processes one record: primary bindings, companion visitor
// blocks, then submission. Required-field failures abort the record; optional
// ones are logged and counted.
func (f *FormFillerService) FillAndSubmit(ctx context.Context, rec models.Record) (models.FieldStats, error) {
	var stats models.FieldStats

	for _, b := range f.Mapping.Bindings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		value := rec.Get(b.RecordKey)
		if value == "" {
			if b.Required {
				return stats, fieldErr(b.Spec.Name, "", fmt.Errorf("record has no value for required column %q", b.RecordKey))
			}
			continue
		}
		stats.Attempted++
		if err := f.fillBinding(ctx, b, value); err != nil {
			if b.Required {
				return stats, err
			}
			log.Printf("Optional field %q failed: %v", b.Spec.Name, err)
			continue
		}
		stats.Succeeded++
	}

	companionStats, err := f.fillCompanions(ctx, rec)
	stats.Attempted += companionStats.Attempted
	stats.Succeeded += companionStats.Succeeded
	if err != nil {
		return stats, err
	}

	if err := f.submit(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func (f *FormFillerService) fillBinding(ctx context.Context, b FieldBinding, value string) error {
	value, err := segmentValue(b, value)
	if err != nil {
		return fieldErr(b.Spec.Name, "", err)
	}

	var el Element
	if b.ContainerRole != "" {
		el, err = f.containerInput(b)
	} else {
		var resolved *ResolvedElement
		resolved, err = f.Resolver.Resolve(b.Spec, 5*time.Second)
		if resolved != nil {
			el = resolved.Element
		}
	}
	if err != nil {
		return err
	}

	if err := f.Injector.SetValue(el, b.Spec.Name, value, b.Spec.Verify); err != nil {
		return err
	}

	if b.Confirm {
		outcome, err := f.Confirm.Run(ctx, f.Mapping.Confirm, value)
		if err != nil {
			return err
		}
		log.Printf("Duplicate check for %q: %s via %s", b.Spec.Name, outcome.Availability, outcome.Source)
	}
	return nil
}

// segmentValue applies phone splitting when the binding asks for a segment.
func segmentValue(b FieldBinding, value string) (string, error) {
	if b.Phone == PhoneWhole {
		return value, nil
	}
	parts, err := models.SplitPhone(value)
	if err != nil {
		return "", err
	}
	switch b.Phone {
	case PhoneMiddle:
		return parts[1], nil
	case PhoneLast:
		return parts[2], nil
	}
	return value, nil
}

// containerInput resolves a binding scoped to a structurally selected
// container instead of the whole page.
func (f *FormFillerService) containerInput(b FieldBinding) (Element, error) {
	sig, ok := f.Mapping.Containers.Signatures[b.ContainerRole]
	if !ok {
		return nil, fieldErr(b.Spec.Name, "", fmt.Errorf("%w: no signature for role %q", ErrAmbiguousStructure, b.ContainerRole))
	}
	container, err := f.disambiguator.Select(sig)
	if err != nil {
		return nil, fieldErr(b.Spec.Name, "", err)
	}
	inputs, err := container.QueryAll(b.ContainerSelector)
	if err != nil || len(inputs) == 0 {
		return nil, fieldErr(b.Spec.Name, b.ContainerSelector, ErrElementNotFound)
	}
	return inputs[0], nil
}

// fillCompanions adds one visitor block per companion group present in the
// record (keys "<prefix>1_name", "<prefix>1_phone", ...) and fills it. Each
// new block is located structurally, never by insertion order.
func (f *FormFillerService) fillCompanions(ctx context.Context, rec models.Record) (models.FieldStats, error) {
	var stats models.FieldStats
	if f.Mapping.CompanionPrefix == "" {
		return stats, nil
	}
	sig, ok := f.Mapping.Containers.Signatures["visitor"]
	if !ok {
		return stats, nil
	}

	for n := 1; ; n++ {
		nameKey := fmt.Sprintf("%s%d_name", f.Mapping.CompanionPrefix, n)
		if !rec.Has(nameKey) {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		add, err := f.Resolver.Resolve(f.Mapping.AddButton, 5*time.Second)
		if err != nil {
			return stats, err
		}
		if err := add.Click(); err != nil {
			return stats, fieldErr(f.Mapping.AddButton.Name, "", fmt.Errorf("could not add visitor block: %v", err))
		}
		time.Sleep(500 * time.Millisecond)

		block, err := f.disambiguator.NewlyAdded(sig)
		if err != nil {
			return stats, fieldErr(nameKey, "", err)
		}

		blockStats, err := f.fillCompanionBlock(block, rec, n)
		stats.Attempted += blockStats.Attempted
		stats.Succeeded += blockStats.Succeeded
		if err != nil {
			return stats, err
		}
		log.Printf("Companion visitor %d filled", n)
	}
	return stats, nil
}

func (f *FormFillerService) fillCompanionBlock(block *LabeledContainer, rec models.Record, n int) (models.FieldStats, error) {
	var stats models.FieldStats
	prefix := f.Mapping.CompanionPrefix
	c := f.Mapping.Containers

	name := rec.Get(fmt.Sprintf("%s%d_name", prefix, n))
	stats.Attempted++
	if err := f.fillInBlock(block, c.NameSelector, 0, fmt.Sprintf("%s%d name", prefix, n), name); err != nil {
		return stats, err
	}
	stats.Succeeded++

	phone := rec.Get(fmt.Sprintf("%s%d_phone", prefix, n))
	if phone == "" {
		return stats, nil
	}
	parts, err := models.SplitPhone(phone)
	if err != nil {
		return stats, fieldErr(fmt.Sprintf("%s%d phone", prefix, n), "", err)
	}
	// Visitor blocks carry two phone sub-inputs: middle and last segment.
	for i, segment := range []string{parts[1], parts[2]} {
		stats.Attempted++
		if err := f.fillInBlock(block, c.PhoneSelector, i, fmt.Sprintf("%s%d phone[%d]", prefix, n, i), segment); err != nil {
			return stats, err
		}
		stats.Succeeded++
	}
	return stats, nil
}

func (f *FormFillerService) fillInBlock(block *LabeledContainer, selector string, index int, field, value string) error {
	inputs, err := block.QueryAll(selector)
	if err != nil || len(inputs) <= index {
		return fieldErr(field, selector, ErrElementNotFound)
	}
	return f.Injector.SetValue(inputs[index], field, value, models.VerifyRule{Kind: models.VerifyExact})
}

// submit clicks the submit control and walks any confirmation dialogs.
func (f *FormFillerService) submit(ctx context.Context) error {
	btn, err := f.Resolver.Resolve(f.Mapping.Submit, 5*time.Second)
	if err != nil {
		return err
	}
	if err := btn.Click(); err != nil {
		return fieldErr(f.Mapping.Submit.Name, "", fmt.Errorf("could not submit: %v", err))
	}

	for _, label := range f.Mapping.SubmitConfirmText {
		if err := ctx.Err(); err != nil {
			return err
		}
		el, err := f.Browser.Find(models.LocatorText, label, 3*time.Second)
		if err != nil {
			continue
		}
		if visible, _ := el.IsVisible(); !visible {
			continue
		}
		if err := el.Click(); err == nil {
			log.Printf("Submit dialog %q confirmed", label)
			time.Sleep(500 * time.Millisecond)
		}
	}
	return nil
}
