package services

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"visitauto/models"
)

// Element is the engine's view of one live DOM node. Handles are valid for a
// single logical operation only; SPA re-renders invalidate them, so nothing
// holds an Element across a navigation.
type Element interface {
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	Click() error
	Press(key string) error
	TypeText(text string) error
	FillText(text string) error
	InputValue() (string, error)
	TextContent() (string, error)
	TagName() (string, error)
	Evaluate(expression string, arg interface{}) (interface{}, error)
	QueryAll(selector string) ([]Element, error)
}

// NetworkResponse is one observed HTTP response from the page's traffic.
type NetworkResponse struct {
	URL  string
	Body string
}

// Browser is the only boundary between the engine and a real browser. The
// production implementation wraps a playwright page; tests substitute a fake.
type Browser interface {
	Find(kind models.LocatorKind, expression string, timeout time.Duration) (Element, error)
	FindAll(kind models.LocatorKind, expression string) ([]Element, error)
	Navigate(url string) error
	CurrentURL() string
	Evaluate(script string, arg interface{}) (interface{}, error)
	// SubscribeResponses starts watching page traffic for responses whose URL
	// contains the fragment. The returned cancel func stops delivery.
	SubscribeResponses(urlFragment string) (<-chan NetworkResponse, func())
	Screenshot(path string) error
}

// PlaywrightSession owns the browser process for the lifetime of one batch.
// It is acquired before RunBatch and released after, regardless of outcome.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// NewPlaywrightSession launches chromium and opens a single page.
func NewPlaywrightSession(headless bool) (*PlaywrightSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %v", err)
	}

	if !headless {
		log.Println("Running browser in visible mode")
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %v", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("could not create context: %v", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("could not create page: %v", err)
	}

	return &PlaywrightSession{pw: pw, browser: browser, context: context, page: page}, nil
}

// Close shuts the page, context, browser and playwright down in order.
func (s *PlaywrightSession) Close() error {
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			log.Printf("Error closing context: %v", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Printf("Error closing browser: %v", err)
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			log.Printf("Error stopping playwright: %v", err)
		}
	}
	return nil
}

// Browser returns the capability view of the session's page.
func (s *PlaywrightSession) Browser() Browser {
	return &playwrightBrowser{page: s.page}
}

type playwrightBrowser struct {
	page playwright.Page

	// A single page-level response handler is installed on first subscription
	// and multiplexes to the live subscribers below.
	watchOnce sync.Once
	subMu     sync.Mutex
	subs      map[int]*responseSub
	nextSubID int
}

type responseSub struct {
	fragment string
	ch       chan NetworkResponse
}

func selectorFor(kind models.LocatorKind, expression string) string {
	switch kind {
	case models.LocatorXPath:
		return "xpath=" + expression
	case models.LocatorText:
		return "text=" + expression
	default:
		return expression
	}
}

func (b *playwrightBrowser) Find(kind models.LocatorKind, expression string, timeout time.Duration) (Element, error) {
	loc := b.page.Locator(selectorFor(kind, expression)).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("no element for %s locator %q: %v", kind, expression, err)
	}
	return &playwrightElement{loc: loc}, nil
}

func (b *playwrightBrowser) FindAll(kind models.LocatorKind, expression string) ([]Element, error) {
	locs, err := b.page.Locator(selectorFor(kind, expression)).All()
	if err != nil {
		return nil, fmt.Errorf("could not enumerate %s locator %q: %v", kind, expression, err)
	}
	elements := make([]Element, 0, len(locs))
	for _, loc := range locs {
		elements = append(elements, &playwrightElement{loc: loc})
	}
	return elements, nil
}

func (b *playwrightBrowser) Navigate(url string) error {
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("could not navigate to %s: %v", url, err)
	}
	return nil
}

func (b *playwrightBrowser) CurrentURL() string {
	return b.page.URL()
}

func (b *playwrightBrowser) Evaluate(script string, arg interface{}) (interface{}, error) {
	return b.page.Evaluate(script, arg)
}

func (b *playwrightBrowser) SubscribeResponses(urlFragment string) (<-chan NetworkResponse, func()) {
	b.watchOnce.Do(b.installResponseWatcher)
	return b.addSubscriber(urlFragment)
}

func (b *playwrightBrowser) installResponseWatcher() {
	b.page.OnResponse(func(resp playwright.Response) {
		url := resp.URL()
		if !b.wantsResponse(url) {
			return
		}
		body, err := resp.Text()
		if err != nil {
			log.Printf("Could not read response body for %s: %v", url, err)
			return
		}
		b.deliver(url, body)
	})
}

// addSubscriber registers interest in responses matching the fragment. The
// cancel func deregisters the subscriber, so no handler state outlives its
// duplicate check.
func (b *playwrightBrowser) addSubscriber(urlFragment string) (<-chan NetworkResponse, func()) {
	sub := &responseSub{fragment: urlFragment, ch: make(chan NetworkResponse, 8)}

	b.subMu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]*responseSub)
	}
	b.nextSubID++
	id := b.nextSubID
	b.subs[id] = sub
	b.subMu.Unlock()

	cancel := func() {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
	}
	return sub.ch, cancel
}

// wantsResponse reports whether any live subscriber matches the URL, so
// response bodies are only fetched when someone is listening.
func (b *playwrightBrowser) wantsResponse(url string) bool {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, sub := range b.subs {
		if strings.Contains(url, sub.fragment) {
			return true
		}
	}
	return false
}

// deliver fans a response out to every matching subscriber.
func (b *playwrightBrowser) deliver(url, body string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, sub := range b.subs {
		if !strings.Contains(url, sub.fragment) {
			continue
		}
		select {
		case sub.ch <- NetworkResponse{URL: url, Body: body}:
		default:
			// Slow consumer; a later response for the same check supersedes.
		}
	}
}

func (b *playwrightBrowser) Screenshot(path string) error {
	_, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("could not take screenshot: %v", err)
	}
	return nil
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) IsVisible() (bool, error) { return e.loc.IsVisible() }
func (e *playwrightElement) IsEnabled() (bool, error) { return e.loc.IsEnabled() }
func (e *playwrightElement) Click() error             { return e.loc.Click() }
func (e *playwrightElement) Press(key string) error   { return e.loc.Press(key) }

func (e *playwrightElement) TypeText(text string) error {
	return e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(25),
	})
}

func (e *playwrightElement) FillText(text string) error {
	return e.loc.Fill(text)
}

func (e *playwrightElement) InputValue() (string, error) {
	return e.loc.InputValue()
}

func (e *playwrightElement) TextContent() (string, error) {
	text, err := e.loc.TextContent()
	if err != nil {
		return "", err
	}
	return text, nil
}

func (e *playwrightElement) TagName() (string, error) {
	result, err := e.loc.Evaluate("el => el.tagName.toLowerCase()", nil)
	if err != nil {
		return "", err
	}
	tag, _ := result.(string)
	return tag, nil
}

func (e *playwrightElement) Evaluate(expression string, arg interface{}) (interface{}, error) {
	return e.loc.Evaluate(expression, arg)
}

func (e *playwrightElement) QueryAll(selector string) ([]Element, error) {
	locs, err := e.loc.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(locs))
	for _, loc := range locs {
		elements = append(elements, &playwrightElement{loc: loc})
	}
	return elements, nil
}
