package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"visitauto/models"
)

// ConfirmConfig holds the site-specific knobs of a duplicate-identifier check.
type ConfirmConfig struct {
	// IDField receives the candidate identifier before the check is triggered.
	IDField models.FieldSpec
	// CheckButton triggers the server-side availability lookup.
	CheckButton models.FieldSpec
	// EndpointFragment matches the availability endpoint in response URLs,
	// e.g. "checkId".
	EndpointFragment string
	// AvailablePhrases / TakenPhrases are matched as substrings against
	// network response bodies and dialog text, after NFC normalization.
	AvailablePhrases []string
	TakenPhrases     []string
	// DialogSelector locates the result dialog, e.g. "[role='dialog']".
	DialogSelector string
	// DismissButtons are tried in order inside the dialog; DismissText is a
	// page-wide text fallback ("예", "확인") when none resolve.
	DismissButtons []models.LocatorCandidate
	DismissText    []string
	// Timeout bounds the whole observation race. Zero means 10s.
	Timeout time.Duration
	// Strict turns deadline expiry into a hard failure instead of the
	// assumed-available default.
	Strict bool
}

// checkIDResponse is the JSON shape of the availability endpoint.
// checkPerId is "Y" when the identifier is free, "N" when taken.
type checkIDResponse struct {
	Status string `json:"status"`
	Data   struct {
		CheckPerID string `json:"checkPerId"`
	} `json:"data"`
}

// ConfirmProtocol drives an asynchronous duplicate-identifier check: inject
// the candidate ID, trigger the check, then observe the outcome through two
// concurrent channels (network responses and DOM dialog polling) under one
// shared deadline. Whatever the outcome, any result dialog is dismissed so
// the form is usable afterwards.
type ConfirmProtocol struct {
	Browser  Browser
	Resolver *Resolver
	Injector *Injector
}

// Run performs the full check for one identifier. The returned outcome
// carries which channel produced it; a failed dialog dismissal is logged
// and never invalidates the availability outcome.
func (p *ConfirmProtocol) Run(ctx context.Context, cfg ConfirmConfig, id string) (models.ConfirmationOutcome, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	idEl, err := p.Resolver.Resolve(cfg.IDField, 5*time.Second)
	if err != nil {
		return models.ConfirmationOutcome{}, err
	}
	if err := p.Injector.SetValue(idEl.Element, cfg.IDField.Name, id, cfg.IDField.Verify); err != nil {
		return models.ConfirmationOutcome{}, err
	}

	// Subscribe before clicking so a fast response cannot slip past us.
	responses, cancelWatch := p.Browser.SubscribeResponses(cfg.EndpointFragment)
	defer cancelWatch()

	btn, err := p.Resolver.Resolve(cfg.CheckButton, 5*time.Second)
	if err != nil {
		return models.ConfirmationOutcome{}, err
	}
	if err := btn.Click(); err != nil {
		return models.ConfirmationOutcome{}, fieldErr(cfg.CheckButton.Name, "", fmt.Errorf("could not trigger duplicate check: %v", err))
	}

	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcomes := make(chan models.ConfirmationOutcome, 2)
	go p.watchNetwork(raceCtx, cfg, responses, outcomes)
	go p.pollDialog(raceCtx, cfg, outcomes)

	outcome := p.awaitOutcome(raceCtx, timeout, outcomes)
	cancel()

	// Dismissal always runs: an undismissed dialog blocks every later
	// interaction with the form. A failed dismissal is only logged; the
	// availability outcome stands regardless.
	if err := p.dismissDialog(cfg); err != nil {
		log.Printf("Warning: result dialog not dismissed cleanly: %v", err)
	}

	if outcome.Availability == models.Unavailable {
		return outcome, fmt.Errorf("%w: %q (%s)", ErrIdentifierTaken, id, outcome.Source)
	}
	if cfg.Strict && outcome.Source == models.SourceAssumed {
		return outcome, fmt.Errorf("%w: no availability signal for %q within %s", ErrConfirmationTimeout, id, timeout)
	}
	return outcome, nil
}

func (p *ConfirmProtocol) awaitOutcome(ctx context.Context, timeout time.Duration, outcomes <-chan models.ConfirmationOutcome) models.ConfirmationOutcome {
	for {
		select {
		case out := <-outcomes:
			if out.Definitive() {
				return out
			}
		case <-ctx.Done():
			log.Printf("Warning: duplicate check timed out after %s, assuming identifier is available", timeout)
			return models.ConfirmationOutcome{
				Availability: models.Available,
				Source:       models.SourceAssumed,
			}
		}
	}
}

// watchNetwork classifies availability endpoint responses. JSON parsing is
// tried first; plain phrase matching covers non-JSON bodies.
func (p *ConfirmProtocol) watchNetwork(ctx context.Context, cfg ConfirmConfig, responses <-chan NetworkResponse, outcomes chan<- models.ConfirmationOutcome) {
	for {
		select {
		case resp, ok := <-responses:
			if !ok {
				return
			}
			if out, ok := classifyBody(cfg, resp.Body); ok {
				out.Source = models.SourceNetwork
				select {
				case outcomes <- out:
				case <-ctx.Done():
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func classifyBody(cfg ConfirmConfig, body string) (models.ConfirmationOutcome, bool) {
	var parsed checkIDResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Data.CheckPerID != "" {
		switch parsed.Data.CheckPerID {
		case "Y":
			return models.ConfirmationOutcome{Availability: models.Available, RawMessage: body}, true
		case "N":
			return models.ConfirmationOutcome{Availability: models.Unavailable, RawMessage: body}, true
		}
	}
	return classifyText(cfg, body)
}

// classifyText matches the configured phrases against arbitrary text. Both
// sides are NFC-normalized first; Korean text reaches us in mixed forms
// depending on how the page composed it.
func classifyText(cfg ConfirmConfig, text string) (models.ConfirmationOutcome, bool) {
	normalized := norm.NFC.String(text)
	for _, phrase := range cfg.TakenPhrases {
		if strings.Contains(normalized, norm.NFC.String(phrase)) {
			return models.ConfirmationOutcome{Availability: models.Unavailable, RawMessage: normalized}, true
		}
	}
	for _, phrase := range cfg.AvailablePhrases {
		if strings.Contains(normalized, norm.NFC.String(phrase)) {
			return models.ConfirmationOutcome{Availability: models.Available, RawMessage: normalized}, true
		}
	}
	return models.ConfirmationOutcome{}, false
}

// pollDialog checks for a visible result dialog every 250ms and classifies
// its text. Unrecognized dialog text keeps polling rather than guessing.
func (p *ConfirmProtocol) pollDialog(ctx context.Context, cfg ConfirmConfig, outcomes chan<- models.ConfirmationOutcome) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			text, ok := p.visibleDialogText(cfg)
			if !ok {
				continue
			}
			out, ok := classifyText(cfg, text)
			if !ok {
				continue
			}
			out.Source = models.SourceDOMPoll
			select {
			case outcomes <- out:
			case <-ctx.Done():
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *ConfirmProtocol) visibleDialogText(cfg ConfirmConfig) (string, bool) {
	dialogs, err := p.Browser.FindAll(models.LocatorCSS, cfg.DialogSelector)
	if err != nil {
		return "", false
	}
	for _, d := range dialogs {
		visible, err := d.IsVisible()
		if err != nil || !visible {
			continue
		}
		text, err := d.TextContent()
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		return text, true
	}
	return "", false
}

// dismissDialog closes any visible result dialog: dialog-scoped button
// candidates first, then a page-wide text search. Verified by re-checking
// that no dialog remains visible.
func (p *ConfirmProtocol) dismissDialog(cfg ConfirmConfig) error {
	if _, visible := p.visibleDialogText(cfg); !visible {
		return nil
	}

	if p.clickDialogButton(cfg) {
		time.Sleep(300 * time.Millisecond)
		if _, visible := p.visibleDialogText(cfg); !visible {
			return nil
		}
	}

	for _, label := range cfg.DismissText {
		el, err := p.Browser.Find(models.LocatorText, label, 500*time.Millisecond)
		if err != nil {
			continue
		}
		if visible, _ := el.IsVisible(); !visible {
			continue
		}
		if err := el.Click(); err != nil {
			continue
		}
		time.Sleep(300 * time.Millisecond)
		if _, visible := p.visibleDialogText(cfg); !visible {
			return nil
		}
	}
	return fmt.Errorf("result dialog still visible after dismissal attempts")
}

func (p *ConfirmProtocol) clickDialogButton(cfg ConfirmConfig) bool {
	dialogs, err := p.Browser.FindAll(models.LocatorCSS, cfg.DialogSelector)
	if err != nil {
		return false
	}
	for _, d := range dialogs {
		if visible, _ := d.IsVisible(); !visible {
			continue
		}
		for _, cand := range cfg.DismissButtons {
			if cand.Kind != models.LocatorCSS {
				continue
			}
			buttons, err := d.QueryAll(cand.Expression)
			if err != nil || len(buttons) == 0 {
				continue
			}
			if err := buttons[0].Click(); err == nil {
				return true
			}
		}
	}
	return false
}
