package services

import (
	"time"

	"visitauto/models"
)

// Site mapping tables. Each entry is the complete declarative description of
// one target site; the engine itself carries no site knowledge.

// VisitPortalMapping maps the visit-request portal: terms agreement, a
// visited-person block (3-segment phone) plus visitor blocks (2-segment
// phone), a duplicate-checked visitor ID, and companion visitors added via
// the add button.
func VisitPortalMapping(startURL string) SiteMapping {
	exact := models.VerifyRule{Kind: models.VerifyExact}
	return SiteMapping{
		Name:     "visit-portal",
		StartURL: startURL,
		SessionSteps: []SessionStep{
			{
				Name: "agree-terms",
				Spec: models.FieldSpec{
					Name: "terms agreement",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#agreeAll"),
						models.CSS("input[name='agree_all']"),
						models.Text("전체 동의"),
					},
					Interactive: true,
				},
				Delay: 500 * time.Millisecond,
			},
			{
				Name: "start-application",
				Spec: models.FieldSpec{
					Name: "application start button",
					Candidates: []models.LocatorCandidate{
						models.CSS("button.btn_apply"),
						models.Text("방문신청"),
					},
					Interactive: true,
				},
				Optional: true,
				Delay:    time.Second,
			},
		},
		Bindings: []FieldBinding{
			{
				RecordKey: "visitor_name",
				Required:  true,
				Spec: models.FieldSpec{
					Name: "visitor name",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#visitorNm"),
						models.CSS("input[name='visitor_name']"),
						models.XPath("//label[contains(text(),'방문자')]/following-sibling::input"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				RecordKey: "visitor_id",
				Required:  true,
				Confirm:   true,
				Spec: models.FieldSpec{
					Name: "visitor id",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#perId"),
						models.CSS("input[name='per_id']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				RecordKey: "visited_name",
				Required:  true,
				Spec: models.FieldSpec{
					Name: "visited person name",
				},
				ContainerRole:     "visited-person",
				ContainerSelector: "input.name_input",
			},
			{
				RecordKey: "visited_phone",
				Phone:     PhoneMiddle,
				Spec: models.FieldSpec{
					Name: "visited person phone middle",
				},
				ContainerRole:     "visited-person",
				ContainerSelector: "input.phone_mid",
			},
			{
				RecordKey: "visited_phone",
				Phone:     PhoneLast,
				Spec: models.FieldSpec{
					Name: "visited person phone last",
				},
				ContainerRole:     "visited-person",
				ContainerSelector: "input.phone_last",
			},
			{
				RecordKey: "visit_purpose",
				Spec: models.FieldSpec{
					Name: "visit purpose",
					Candidates: []models.LocatorCandidate{
						models.CSS("textarea#visitPurpose"),
						models.CSS("textarea[name='purpose']"),
					},
					Verify: models.VerifyRule{Kind: models.VerifyNonEmpty},
				},
			},
		},
		Confirm: ConfirmConfig{
			IDField: models.FieldSpec{
				Name: "visitor id",
				Candidates: []models.LocatorCandidate{
					models.CSS("input#perId"),
					models.CSS("input[name='per_id']"),
				},
				Verify:      exact,
				Interactive: true,
			},
			CheckButton: models.FieldSpec{
				Name: "duplicate check button",
				Candidates: []models.LocatorCandidate{
					models.CSS("button#btnCheckId"),
					models.Text("중복확인"),
				},
				Interactive: true,
			},
			EndpointFragment: "checkId",
			AvailablePhrases: []string{"사용 가능한 ID입니다", "사용 가능"},
			TakenPhrases:     []string{"이미 사용 중인 ID입니다", "이미 사용"},
			DialogSelector:   "[role='dialog']",
			DismissButtons: []models.LocatorCandidate{
				models.CSS("button.btn_confirm"),
				models.CSS("button"),
			},
			DismissText: []string{"예", "확인"},
			Timeout:     10 * time.Second,
		},
		Containers: ContainerConfig{
			ContainerSelector: "ul.visit_list > li",
			PhoneSelector:     "input[type='tel'], input.phone_mid, input.phone_last, input.phone_first",
			NameSelector:      "input.name_input",
			Roles: map[int]string{
				3: "visited-person",
				2: "visitor",
			},
			Signatures: map[string]ContainerSignature{
				"visited-person": {PhoneInputCount: 3},
				"visitor":        {PhoneInputCount: 2},
			},
		},
		CompanionPrefix: "companion",
		AddButton: models.FieldSpec{
			Name: "add visitor button",
			Candidates: []models.LocatorCandidate{
				models.CSS("button.btn_add_visitor"),
				models.Text("방문자 추가"),
			},
			Interactive: true,
		},
		Submit: models.FieldSpec{
			Name: "submit button",
			Candidates: []models.LocatorCandidate{
				models.CSS("button#btnSubmit"),
				models.Text("신청하기"),
			},
			Interactive: true,
		},
		SubmitConfirmText: []string{"예", "확인"},
	}
}

// ITSMMemberMapping maps the ITSM member-registration form: a flat form with
// a duplicate-checked login ID and no repeated container blocks.
func ITSMMemberMapping(startURL string) SiteMapping {
	exact := models.VerifyRule{Kind: models.VerifyExact}
	return SiteMapping{
		Name:     "itsm-member",
		StartURL: startURL,
		SessionSteps: []SessionStep{
			{
				Name:     "login-id",
				ValueEnv: "ITSM_LOGIN_ID",
				Spec: models.FieldSpec{
					Name: "admin login id",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#loginId"),
						models.CSS("input[name='login_id']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				Name:     "login-password",
				ValueEnv: "ITSM_LOGIN_PASSWORD",
				Spec: models.FieldSpec{
					Name: "admin login password",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#loginPw"),
						models.CSS("input[type='password']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				Name: "login-submit",
				Spec: models.FieldSpec{
					Name: "login button",
					Candidates: []models.LocatorCandidate{
						models.CSS("button#btnLogin"),
						models.Text("로그인"),
					},
					Interactive: true,
				},
				Delay: 2 * time.Second,
			},
			{
				Name: "open-registration",
				Spec: models.FieldSpec{
					Name: "registration link",
					Candidates: []models.LocatorCandidate{
						models.CSS("a.join_link"),
						models.Text("회원가입"),
					},
					Interactive: true,
				},
				Optional: true,
				Delay:    time.Second,
			},
		},
		Bindings: []FieldBinding{
			{
				RecordKey: "user_id",
				Required:  true,
				Confirm:   true,
				Spec: models.FieldSpec{
					Name: "login id",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#userId"),
						models.CSS("input[name='user_id']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				RecordKey: "user_name",
				Required:  true,
				Spec: models.FieldSpec{
					Name: "member name",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#userNm"),
						models.CSS("input[name='user_name']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				RecordKey: "email",
				Spec: models.FieldSpec{
					Name: "email",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#email"),
						models.CSS("input[type='email']"),
					},
					Verify: models.VerifyRule{
						Kind:    models.VerifyPattern,
						Pattern: `^[^@\s]+@[^@\s]+$`,
					},
					Interactive: true,
				},
			},
			{
				RecordKey: "phone",
				Phone:     PhoneMiddle,
				Spec: models.FieldSpec{
					Name: "phone middle",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#phone2"),
						models.CSS("input[name='phone_mid']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
			{
				RecordKey: "phone",
				Phone:     PhoneLast,
				Spec: models.FieldSpec{
					Name: "phone last",
					Candidates: []models.LocatorCandidate{
						models.CSS("input#phone3"),
						models.CSS("input[name='phone_last']"),
					},
					Verify:      exact,
					Interactive: true,
				},
			},
		},
		Confirm: ConfirmConfig{
			IDField: models.FieldSpec{
				Name: "login id",
				Candidates: []models.LocatorCandidate{
					models.CSS("input#userId"),
					models.CSS("input[name='user_id']"),
				},
				Verify:      exact,
				Interactive: true,
			},
			CheckButton: models.FieldSpec{
				Name: "duplicate check button",
				Candidates: []models.LocatorCandidate{
					models.CSS("button#btnIdCheck"),
					models.Text("중복확인"),
				},
				Interactive: true,
			},
			EndpointFragment: "checkId",
			AvailablePhrases: []string{"사용 가능한 ID입니다"},
			TakenPhrases:     []string{"이미 사용 중인 ID입니다"},
			DialogSelector:   "[role='dialog'], .modal.show",
			DismissButtons: []models.LocatorCandidate{
				models.CSS("button.btn_ok"),
				models.CSS("button"),
			},
			DismissText: []string{"확인", "예"},
			Timeout:     10 * time.Second,
		},
		Submit: models.FieldSpec{
			Name: "register button",
			Candidates: []models.LocatorCandidate{
				models.CSS("button#btnJoin"),
				models.Text("가입하기"),
			},
			Interactive: true,
		},
		SubmitConfirmText: []string{"확인"},
	}
}

// MappingFor returns the mapping registered under the given site key.
func MappingFor(site, startURL string) (SiteMapping, bool) {
	switch site {
	case "visit-portal":
		return VisitPortalMapping(startURL), true
	case "itsm-member":
		return ITSMMemberMapping(startURL), true
	}
	return SiteMapping{}, false
}
