package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"

	"visitauto/models"
)

func newConfirmFixture() (*fakeBrowser, *ConfirmProtocol, ConfirmConfig) {
	browser := newFakeBrowser()
	browser.addElement(models.LocatorCSS, "input#perId", newFakeElement())
	browser.addElement(models.LocatorCSS, "button#btnCheckId", newFakeElement())

	resolver := NewResolver(browser)
	protocol := &ConfirmProtocol{
		Browser:  browser,
		Resolver: resolver,
		Injector: NewInjector(),
	}

	cfg := ConfirmConfig{
		IDField: models.FieldSpec{
			Name:       "visitor id",
			Candidates: []models.LocatorCandidate{models.CSS("input#perId")},
			Verify:     models.VerifyRule{Kind: models.VerifyExact},
		},
		CheckButton: models.FieldSpec{
			Name:       "duplicate check button",
			Candidates: []models.LocatorCandidate{models.CSS("button#btnCheckId")},
		},
		EndpointFragment: "checkId",
		AvailablePhrases: []string{"사용 가능한 ID입니다"},
		TakenPhrases:     []string{"이미 사용 중인 ID입니다"},
		DialogSelector:   "[role='dialog']",
		DismissButtons:   []models.LocatorCandidate{models.CSS("button.btn_confirm")},
		DismissText:      []string{"예"},
		Timeout:          2 * time.Second,
	}
	return browser, protocol, cfg
}

func TestConfirmNetworkAvailable(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: `{"status":"OK","data":{"checkPerId":"Y"}}`,
	}}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.Available, outcome.Availability)
	assert.Equal(t, models.SourceNetwork, outcome.Source)
}

func TestConfirmNetworkTaken(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: `{"status":"OK","data":{"checkPerId":"N"}}`,
	}}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentifierTaken))
	assert.Equal(t, models.Unavailable, outcome.Availability)
	assert.Equal(t, models.SourceNetwork, outcome.Source)
}

func TestConfirmNetworkPhraseFallbackForNonJSONBody(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: "<b>이미 사용 중인 ID입니다</b>",
	}}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.True(t, errors.Is(err, ErrIdentifierTaken))
	assert.Equal(t, models.Unavailable, outcome.Availability)
}

func TestConfirmDialogPollFallback(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()

	dialog := newFakeElement()
	dialog.tag = "div"
	// The page may emit decomposed hangul; classification must still match.
	dialog.text = norm.NFD.String("사용 가능한 ID입니다")
	closeBtn := newFakeElement()
	closeBtn.onClick = func() { dialog.visible = false }
	dialog.children["button.btn_confirm"] = []*fakeElement{closeBtn}
	browser.all[browser.key(models.LocatorCSS, "[role='dialog']")] = []*fakeElement{dialog}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.Available, outcome.Availability)
	assert.Equal(t, models.SourceDOMPoll, outcome.Source)
	// The dialog must have been dismissed.
	assert.False(t, dialog.visible)
}

func TestConfirmNetworkBeatsDialogPoll(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	// Both observers can answer: an immediate network response and an
	// already-visible classifiable dialog. The network answer lands before
	// the poller's first 250ms tick and must win the race.
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: `{"status":"OK","data":{"checkPerId":"Y"}}`,
	}}
	dialog := newFakeElement()
	dialog.tag = "div"
	dialog.text = "사용 가능한 ID입니다"
	closeBtn := newFakeElement()
	closeBtn.onClick = func() { dialog.visible = false }
	dialog.children["button.btn_confirm"] = []*fakeElement{closeBtn}
	browser.all[browser.key(models.LocatorCSS, "[role='dialog']")] = []*fakeElement{dialog}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.Available, outcome.Availability)
	assert.Equal(t, models.SourceNetwork, outcome.Source)
	assert.False(t, dialog.visible)
}

func TestConfirmDismissalFailureKeepsOutcome(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: `{"status":"OK","data":{"checkPerId":"Y"}}`,
	}}
	// A stuck dialog with no working dismiss button. The availability
	// outcome must survive the failed dismissal.
	dialog := newFakeElement()
	dialog.tag = "div"
	dialog.text = "사용 가능한 ID입니다"
	browser.all[browser.key(models.LocatorCSS, "[role='dialog']")] = []*fakeElement{dialog}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.Available, outcome.Availability)
	assert.Equal(t, models.SourceNetwork, outcome.Source)
}

func TestConfirmTimeoutAssumesAvailable(t *testing.T) {
	_, protocol, cfg := newConfirmFixture()
	cfg.Timeout = 400 * time.Millisecond

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.Available, outcome.Availability)
	assert.Equal(t, models.SourceAssumed, outcome.Source)
	assert.False(t, outcome.Definitive())
}

func TestConfirmTimeoutStrictFails(t *testing.T) {
	_, protocol, cfg := newConfirmFixture()
	cfg.Timeout = 400 * time.Millisecond
	cfg.Strict = true

	_, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
}

func TestConfirmLateResponseDoesNotBeatDeadline(t *testing.T) {
	browser, protocol, cfg := newConfirmFixture()
	cfg.Timeout = 300 * time.Millisecond
	browser.responseDelay = 2 * time.Second
	browser.responses = []NetworkResponse{{
		URL:  "https://portal.example.com/api/checkId",
		Body: `{"status":"OK","data":{"checkPerId":"N"}}`,
	}}

	outcome, err := protocol.Run(context.Background(), cfg, "hong123")
	assert.NoError(t, err)
	assert.Equal(t, models.SourceAssumed, outcome.Source)
}

func TestClassifyBodyUnrecognizedKeepsWaiting(t *testing.T) {
	_, _, cfg := newConfirmFixture()
	_, ok := classifyBody(cfg, `{"status":"OK","data":{}}`)
	assert.False(t, ok)
	_, ok = classifyBody(cfg, "unrelated text")
	assert.False(t, ok)
}
