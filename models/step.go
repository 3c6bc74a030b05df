package models

import (
	"fmt"
	"strings"
)

// ReadinessKind names the signal a step waits for after navigation.
type ReadinessKind string

const (
	// ReadinessLoad waits for the navigation load event only.
	ReadinessLoad ReadinessKind = "load"
	// ReadinessElement waits for a located element to become visible.
	ReadinessElement ReadinessKind = "element"
	// ReadinessDelay waits a fixed settle delay.
	ReadinessDelay ReadinessKind = "delay"
	// ReadinessNetworkIdle waits until network activity settles.
	ReadinessNetworkIdle ReadinessKind = "network_idle"
)

// Locator identifies an element on the page. Exactly one of CSS, Role or
// Label is set.
type Locator struct {
	// CSS is a CSS selector, e.g. ".progress-container .progress-bar".
	CSS string `json:"css,omitempty" yaml:"css,omitempty"`

	// Role is an ARIA role ("heading", "button", ...). Name optionally
	// narrows the match to elements whose text contains it, ignoring case.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Label matches a form control by the text of its <label>.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// IsZero reports whether no locator field is set.
func (l Locator) IsZero() bool {
	return l.CSS == "" && l.Role == "" && l.Name == "" && l.Label == ""
}

func (l Locator) String() string {
	switch {
	case l.CSS != "" && l.Name != "":
		return fmt.Sprintf("css=%s[name=%q]", l.CSS, l.Name)
	case l.CSS != "":
		return fmt.Sprintf("css=%s", l.CSS)
	case l.Role != "" && l.Name != "":
		return fmt.Sprintf("role=%s[name=%q]", l.Role, l.Name)
	case l.Role != "":
		return fmt.Sprintf("role=%s", l.Role)
	case l.Label != "":
		return fmt.Sprintf("label=%q", l.Label)
	}
	return "<empty locator>"
}

// Viewport is the browser window size applied before navigation.
type Viewport struct {
	Width  int  `json:"width" yaml:"width"`
	Height int  `json:"height" yaml:"height"`
	Mobile bool `json:"mobile,omitempty" yaml:"mobile,omitempty"`
}

// Readiness is the condition a step blocks on after navigation.
type Readiness struct {
	Kind ReadinessKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Locator is required for ReadinessElement.
	Locator Locator `json:"locator,omitzero" yaml:"locator,omitempty"`

	// Delay is the settle time for ReadinessDelay.
	Delay Duration `json:"delay,omitempty" yaml:"delay,omitempty"`

	// Timeout bounds element and network-idle waits. Zero means the
	// runner default.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Assertion is an element-visibility check evaluated after readiness.
type Assertion struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Locator     Locator  `json:"locator" yaml:"locator"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Label returns the human-readable description, falling back to the locator.
func (a Assertion) Label() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Locator.String() + " is visible"
}

// Interaction clicks a trigger element and checks what it reveals, e.g. a
// login button that opens a sign-in modal.
type Interaction struct {
	Trigger Locator  `json:"trigger" yaml:"trigger"`
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Optional marks a missing trigger as tolerated: the step completes
	// with a warning instead of failing the run.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// Expect is checked after the click.
	Expect []Assertion `json:"expect,omitempty" yaml:"expect,omitempty"`

	// FallbackScreenshot is written instead of the step screenshot when
	// an optional trigger is missing.
	FallbackScreenshot string `json:"fallback_screenshot,omitempty" yaml:"fallback_screenshot,omitempty"`
}

// Step is one page verification: open, wait, assert, capture.
type Step struct {
	Name string `json:"name" yaml:"name"`

	// URL is an absolute URL or a server-relative path joined onto the
	// base URL. File is a path relative to the site directory. Exactly one
	// is set.
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Target is the resolved absolute locator (http(s):// or file://).
	// Filled by plan resolution.
	Target string `json:"target,omitempty" yaml:"-"`

	Viewport    *Viewport    `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	Readiness   Readiness    `json:"readiness,omitzero" yaml:"readiness,omitempty"`
	Assertions  []Assertion  `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Interaction *Interaction `json:"interaction,omitempty" yaml:"interaction,omitempty"`

	// Screenshot is the output file, relative to the plan's output dir
	// until resolution makes it absolute.
	Screenshot string `json:"screenshot" yaml:"screenshot"`
	FullPage   bool   `json:"full_page,omitempty" yaml:"full_page,omitempty"`
}

// Plan is the ordered, static list of steps for one verification run.
type Plan struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	OutputDir   string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Clone returns a deep copy so resolution never mutates shared plans.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		s.Assertions = append([]Assertion(nil), s.Assertions...)
		if s.Viewport != nil {
			v := *s.Viewport
			s.Viewport = &v
		}
		if s.Interaction != nil {
			in := *s.Interaction
			in.Expect = append([]Assertion(nil), in.Expect...)
			s.Interaction = &in
		}
		cp.Steps[i] = s
	}
	return &cp
}

// PageName derives a screenshot base name from a page file name,
// e.g. "about.html" -> "about".
func PageName(file string) string {
	name := file
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".html")
}
