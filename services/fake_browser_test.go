package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"visitauto/models"
)

// fakeElement is a scriptable DOM node stand-in. Behavior flags default to
// a plain visible, enabled input element.
type fakeElement struct {
	tag      string
	visible  bool
	enabled  bool
	value    string
	text     string
	findErr  bool
	children map[string][]*fakeElement

	clicks     int
	presses    []string
	typed      []string
	filled     []string
	evaluated  []string
	valueReads int

	// failNative makes keystroke input land a corrupted value; failScripts
	// does the same for Evaluate-based assignment with the given scripts.
	failNative  bool
	failScripts map[string]bool
	// applyErr makes an input path error out instead of corrupting.
	applyErr map[string]error
	// onClick runs after a successful click, for side effects like hiding
	// a dialog.
	onClick func()
}

func newFakeElement() *fakeElement {
	return &fakeElement{
		tag:         "input",
		visible:     true,
		enabled:     true,
		children:    map[string][]*fakeElement{},
		failScripts: map[string]bool{},
		applyErr:    map[string]error{},
	}
}

func (e *fakeElement) IsVisible() (bool, error) { return e.visible, nil }
func (e *fakeElement) IsEnabled() (bool, error) { return e.enabled, nil }

func (e *fakeElement) Click() error {
	if err := e.applyErr["click"]; err != nil {
		return err
	}
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Press(key string) error {
	e.presses = append(e.presses, key)
	if key == "Control+a" || key == "Delete" {
		e.value = ""
	}
	return nil
}

func (e *fakeElement) TypeText(text string) error {
	if err := e.applyErr["type"]; err != nil {
		return err
	}
	e.typed = append(e.typed, text)
	if e.failNative {
		e.value = text[:len(text)/2]
	} else {
		e.value = text
	}
	return nil
}

func (e *fakeElement) FillText(text string) error {
	if err := e.applyErr["fill"]; err != nil {
		return err
	}
	e.filled = append(e.filled, text)
	if e.failNative {
		e.value = ""
	} else {
		e.value = text
	}
	return nil
}

func (e *fakeElement) InputValue() (string, error) {
	e.valueReads++
	return e.value, nil
}

func (e *fakeElement) TextContent() (string, error) { return e.text, nil }
func (e *fakeElement) TagName() (string, error)     { return e.tag, nil }

func (e *fakeElement) Evaluate(expression string, arg interface{}) (interface{}, error) {
	e.evaluated = append(e.evaluated, expression)
	value, ok := arg.(string)
	if !ok {
		return nil, nil
	}
	if e.failScripts[expression] {
		// Model a framework resetting the value on blur.
		e.value = ""
		return nil, nil
	}
	e.value = value
	return nil, nil
}

func (e *fakeElement) QueryAll(selector string) ([]Element, error) {
	if e.findErr {
		return nil, fmt.Errorf("query failed")
	}
	kids := e.children[selector]
	out := make([]Element, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out, nil
}

// fakeBrowser serves elements by locator expression and replays scripted
// network responses.
type fakeBrowser struct {
	mu       sync.Mutex
	elements map[string]*fakeElement
	all      map[string][]*fakeElement
	findLog  []string
	url      string

	responses   []NetworkResponse
	respondingC chan NetworkResponse
	// responseDelay postpones delivery of scripted responses.
	responseDelay time.Duration

	navigations []string
	screenshots []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		elements: map[string]*fakeElement{},
		all:      map[string][]*fakeElement{},
	}
}

func (b *fakeBrowser) key(kind models.LocatorKind, expression string) string {
	return string(kind) + ":" + expression
}

func (b *fakeBrowser) addElement(kind models.LocatorKind, expression string, el *fakeElement) {
	b.elements[b.key(kind, expression)] = el
}

func (b *fakeBrowser) Find(kind models.LocatorKind, expression string, timeout time.Duration) (Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.findLog = append(b.findLog, b.key(kind, expression))
	el, ok := b.elements[b.key(kind, expression)]
	if !ok {
		return nil, fmt.Errorf("no element for %s %q", kind, expression)
	}
	return el, nil
}

func (b *fakeBrowser) FindAll(kind models.LocatorKind, expression string) ([]Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kids, ok := b.all[b.key(kind, expression)]
	if !ok {
		return nil, nil
	}
	out := make([]Element, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out, nil
}

func (b *fakeBrowser) Navigate(url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigations = append(b.navigations, url)
	b.url = url
	return nil
}

func (b *fakeBrowser) CurrentURL() string { return b.url }

func (b *fakeBrowser) Evaluate(script string, arg interface{}) (interface{}, error) {
	return nil, nil
}

func (b *fakeBrowser) SubscribeResponses(urlFragment string) (<-chan NetworkResponse, func()) {
	ch := make(chan NetworkResponse, 8)
	b.mu.Lock()
	scripted := make([]NetworkResponse, 0, len(b.responses))
	for _, r := range b.responses {
		if strings.Contains(r.URL, urlFragment) {
			scripted = append(scripted, r)
		}
	}
	delay := b.responseDelay
	b.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		for _, r := range scripted {
			ch <- r
		}
	}()
	return ch, func() {}
}

func (b *fakeBrowser) Screenshot(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screenshots = append(b.screenshots, path)
	return nil
}

func (b *fakeBrowser) findCount(kind models.LocatorKind, expression string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range b.findLog {
		if k == b.key(kind, expression) {
			n++
		}
	}
	return n
}
