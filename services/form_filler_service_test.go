package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"visitauto/models"
)

func flatTestMapping() SiteMapping {
	exact := models.VerifyRule{Kind: models.VerifyExact}
	return SiteMapping{
		Name:     "test-site",
		StartURL: "https://portal.example.com/visit",
		Bindings: []FieldBinding{
			{
				RecordKey: "visitor_name",
				Required:  true,
				Spec: models.FieldSpec{
					Name:       "visitor name",
					Candidates: []models.LocatorCandidate{models.CSS("input#name")},
					Verify:     exact,
				},
			},
			{
				RecordKey: "phone",
				Phone:     PhoneMiddle,
				Spec: models.FieldSpec{
					Name:       "phone middle",
					Candidates: []models.LocatorCandidate{models.CSS("input#phone2")},
					Verify:     exact,
				},
			},
			{
				RecordKey: "phone",
				Phone:     PhoneLast,
				Spec: models.FieldSpec{
					Name:       "phone last",
					Candidates: []models.LocatorCandidate{models.CSS("input#phone3")},
					Verify:     exact,
				},
			},
		},
		Submit: models.FieldSpec{
			Name:       "submit",
			Candidates: []models.LocatorCandidate{models.CSS("button#submit")},
		},
	}
}

func TestFillAndSubmitSplitsPhone(t *testing.T) {
	browser := newFakeBrowser()
	name := newFakeElement()
	mid := newFakeElement()
	last := newFakeElement()
	submit := newFakeElement()
	browser.addElement(models.LocatorCSS, "input#name", name)
	browser.addElement(models.LocatorCSS, "input#phone2", mid)
	browser.addElement(models.LocatorCSS, "input#phone3", last)
	browser.addElement(models.LocatorCSS, "button#submit", submit)

	filler := NewFormFillerService(browser, flatTestMapping())
	rec := models.Record{
		"visitor_name": "김철수",
		"phone":        "010-1234-5678",
	}

	stats, err := filler.FillAndSubmit(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, "김철수", name.value)
	assert.Equal(t, "1234", mid.value)
	assert.Equal(t, "5678", last.value)
	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 1, submit.clicks)
}

func TestFillAndSubmitRequiredColumnMissing(t *testing.T) {
	browser := newFakeBrowser()
	browser.addElement(models.LocatorCSS, "input#name", newFakeElement())

	filler := NewFormFillerService(browser, flatTestMapping())
	_, err := filler.FillAndSubmit(context.Background(), models.Record{"phone": "010-1234-5678"})
	assert.Error(t, err)

	var fieldError *FieldError
	assert.True(t, errors.As(err, &fieldError))
	assert.Equal(t, "visitor name", fieldError.Field)
}

func TestFillAndSubmitMalformedPhoneFailsRecord(t *testing.T) {
	browser := newFakeBrowser()
	browser.addElement(models.LocatorCSS, "input#name", newFakeElement())
	browser.addElement(models.LocatorCSS, "input#phone2", newFakeElement())

	mapping := flatTestMapping()
	mapping.Bindings[1].Required = true

	filler := NewFormFillerService(browser, mapping)
	_, err := filler.FillAndSubmit(context.Background(), models.Record{
		"visitor_name": "김철수",
		"phone":        "01012345678",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "3-segment")
}

func TestFillAndSubmitOptionalFieldFailureContinues(t *testing.T) {
	browser := newFakeBrowser()
	browser.addElement(models.LocatorCSS, "input#name", newFakeElement())
	// Phone sub-fields are absent; their bindings are optional.
	browser.addElement(models.LocatorCSS, "button#submit", newFakeElement())

	filler := NewFormFillerService(browser, flatTestMapping())
	stats, err := filler.FillAndSubmit(context.Background(), models.Record{
		"visitor_name": "김철수",
		"phone":        "010-1234-5678",
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestFillBindingScopedToContainer(t *testing.T) {
	browser := newFakeBrowser()
	visited := containerWithPhones(3)
	visitor := containerWithPhones(2)
	browser.all[browser.key(models.LocatorCSS, "ul.visit_list > li")] = []*fakeElement{visitor, visited}
	browser.addElement(models.LocatorCSS, "button#submit", newFakeElement())

	mapping := SiteMapping{
		Name:     "container-site",
		StartURL: "https://portal.example.com/visit",
		Bindings: []FieldBinding{
			{
				RecordKey:         "visited_name",
				Required:          true,
				Spec:              models.FieldSpec{Name: "visited person name"},
				ContainerRole:     "visited-person",
				ContainerSelector: "input.name",
			},
		},
		Containers: ContainerConfig{
			ContainerSelector: "ul.visit_list > li",
			PhoneSelector:     "input.phone",
			NameSelector:      "input.name",
			Roles:             map[int]string{3: "visited-person", 2: "visitor"},
			Signatures: map[string]ContainerSignature{
				"visited-person": {PhoneInputCount: 3},
				"visitor":        {PhoneInputCount: 2},
			},
		},
		Submit: models.FieldSpec{
			Name:       "submit",
			Candidates: []models.LocatorCandidate{models.CSS("button#submit")},
		},
	}

	filler := NewFormFillerService(browser, mapping)
	_, err := filler.FillAndSubmit(context.Background(), models.Record{"visited_name": "박대리"})
	assert.NoError(t, err)
	assert.Equal(t, "박대리", visited.children["input.name"][0].value)
	// The visitor block's name input stayed untouched.
	assert.Equal(t, "", visitor.children["input.name"][0].value)
}

func TestFillCompanionsAddsAndFillsBlocks(t *testing.T) {
	browser := newFakeBrowser()
	visited := containerWithPhones(3)
	containers := []*fakeElement{visited}
	key := browser.key(models.LocatorCSS, "ul.visit_list > li")
	browser.all[key] = containers

	addBtn := newFakeElement()
	addBtn.onClick = func() {
		containers = append(containers, containerWithPhones(2))
		browser.all[key] = containers
	}
	browser.addElement(models.LocatorCSS, "button#add", addBtn)
	browser.addElement(models.LocatorCSS, "button#submit", newFakeElement())

	mapping := SiteMapping{
		Name:     "companion-site",
		StartURL: "https://portal.example.com/visit",
		Containers: ContainerConfig{
			ContainerSelector: "ul.visit_list > li",
			PhoneSelector:     "input.phone",
			NameSelector:      "input.name",
			Roles:             map[int]string{3: "visited-person", 2: "visitor"},
			Signatures: map[string]ContainerSignature{
				"visitor": {PhoneInputCount: 2},
			},
		},
		CompanionPrefix: "companion",
		AddButton: models.FieldSpec{
			Name:       "add visitor",
			Candidates: []models.LocatorCandidate{models.CSS("button#add")},
		},
		Submit: models.FieldSpec{
			Name:       "submit",
			Candidates: []models.LocatorCandidate{models.CSS("button#submit")},
		},
	}

	filler := NewFormFillerService(browser, mapping)
	rec := models.Record{
		"companion1_name":  "이영희",
		"companion1_phone": "010-9876-5432",
		"companion2_name":  "최과장",
	}

	stats, err := filler.FillAndSubmit(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, 2, addBtn.clicks)

	first := containers[1]
	assert.Equal(t, "이영희", first.children["input.name"][0].value)
	assert.Equal(t, "9876", first.children["input.phone"][0].value)
	assert.Equal(t, "5432", first.children["input.phone"][1].value)

	second := containers[2]
	assert.Equal(t, "최과장", second.children["input.name"][0].value)

	// name + 2 phone segments for the first, name only for the second
	assert.Equal(t, 4, stats.Attempted)
	assert.Equal(t, 4, stats.Succeeded)
}

func TestEstablishSessionRunsSteps(t *testing.T) {
	browser := newFakeBrowser()
	agree := newFakeElement()
	browser.addElement(models.LocatorCSS, "input#agree", agree)

	mapping := flatTestMapping()
	mapping.SessionSteps = []SessionStep{
		{
			Name: "agree-terms",
			Spec: models.FieldSpec{
				Name:       "terms agreement",
				Candidates: []models.LocatorCandidate{models.CSS("input#agree")},
			},
		},
		{
			Name: "banner",
			Spec: models.FieldSpec{
				Name:       "banner close",
				Candidates: []models.LocatorCandidate{models.CSS("button#banner")},
			},
			Optional: true,
		},
	}

	filler := NewFormFillerService(browser, mapping)
	err := filler.EstablishSession(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"https://portal.example.com/visit"}, browser.navigations)
	assert.Equal(t, 1, agree.clicks)

	// ResetForm re-navigates and replays the steps.
	assert.NoError(t, filler.ResetForm(context.Background()))
	assert.Len(t, browser.navigations, 2)
	assert.Equal(t, 2, agree.clicks)
}

func TestEstablishSessionInjectsCredentials(t *testing.T) {
	t.Setenv("TEST_LOGIN_ID", "admin01")

	browser := newFakeBrowser()
	loginID := newFakeElement()
	loginBtn := newFakeElement()
	browser.addElement(models.LocatorCSS, "input#loginId", loginID)
	browser.addElement(models.LocatorCSS, "button#btnLogin", loginBtn)

	exact := models.VerifyRule{Kind: models.VerifyExact}
	mapping := flatTestMapping()
	mapping.SessionSteps = []SessionStep{
		{
			Name:     "login-id",
			ValueEnv: "TEST_LOGIN_ID",
			Spec: models.FieldSpec{
				Name:       "login id",
				Candidates: []models.LocatorCandidate{models.CSS("input#loginId")},
				Verify:     exact,
			},
		},
		{
			Name: "login-submit",
			Spec: models.FieldSpec{
				Name:       "login button",
				Candidates: []models.LocatorCandidate{models.CSS("button#btnLogin")},
			},
		},
	}

	filler := NewFormFillerService(browser, mapping)
	assert.NoError(t, filler.EstablishSession(context.Background()))
	assert.Equal(t, "admin01", loginID.value)
	assert.Equal(t, []string{"admin01"}, loginID.typed)
	assert.Equal(t, 1, loginBtn.clicks)
}

func TestEstablishSessionRequiredCredentialUnset(t *testing.T) {
	t.Setenv("TEST_LOGIN_ID", "")

	browser := newFakeBrowser()
	browser.addElement(models.LocatorCSS, "input#loginId", newFakeElement())

	mapping := flatTestMapping()
	mapping.SessionSteps = []SessionStep{
		{
			Name:     "login-id",
			ValueEnv: "TEST_LOGIN_ID",
			Spec: models.FieldSpec{
				Name:       "login id",
				Candidates: []models.LocatorCandidate{models.CSS("input#loginId")},
			},
		},
	}

	filler := NewFormFillerService(browser, mapping)
	err := filler.EstablishSession(context.Background())
	assert.ErrorIs(t, err, ErrSessionEstablishment)
	assert.Contains(t, err.Error(), "TEST_LOGIN_ID")
}

func TestEstablishSessionRequiredStepMissing(t *testing.T) {
	browser := newFakeBrowser()
	mapping := flatTestMapping()
	mapping.SessionSteps = []SessionStep{
		{
			Name: "agree-terms",
			Spec: models.FieldSpec{
				Name:       "terms agreement",
				Candidates: []models.LocatorCandidate{models.CSS("input#agree")},
			},
		},
	}

	filler := NewFormFillerService(browser, mapping)
	err := filler.EstablishSession(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "agree-terms")
}
