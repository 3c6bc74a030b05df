package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pageshot/models"
)

// Validate checks a plan before any browser work: every step must name one
// target, a known readiness kind, well-formed locators and a screenshot
// file no other step writes. All problems are reported at once.
func Validate(p *models.Plan) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(p.Name) == "" {
		add("plan name is required")
	}
	if len(p.Steps) == 0 {
		add("plan has no steps")
	}

	shots := make(map[string]string, len(p.Steps))
	claim := func(where, shot string) {
		if shot == "" {
			return
		}
		key := filepath.Clean(shot)
		if owner, ok := shots[key]; ok {
			add("%s: screenshot %q already written by %s", where, shot, owner)
			return
		}
		shots[key] = where
		if !strings.EqualFold(filepath.Ext(shot), ".png") {
			add("%s: screenshot %q must be a .png file", where, shot)
		}
	}

	for i, s := range p.Steps {
		where := fmt.Sprintf("step %d", i+1)
		if s.Name != "" {
			where = fmt.Sprintf("step %d (%s)", i+1, s.Name)
		} else {
			add("%s: name is required", where)
		}

		switch {
		case s.URL != "" && s.File != "":
			add("%s: set url or file, not both", where)
		case s.URL == "" && s.File == "" && s.Target == "":
			add("%s: url or file is required", where)
		}

		if s.Screenshot == "" {
			add("%s: screenshot is required", where)
		}
		claim(where, s.Screenshot)

		if vp := s.Viewport; vp != nil && (vp.Width <= 0 || vp.Height <= 0) {
			add("%s: viewport must be positive, got %dx%d", where, vp.Width, vp.Height)
		}

		rd := s.Readiness
		switch rd.Kind {
		case "", models.ReadinessLoad, models.ReadinessNetworkIdle:
		case models.ReadinessElement:
			if err := checkLocator(rd.Locator); err != nil {
				add("%s: readiness: %v", where, err)
			}
		case models.ReadinessDelay:
			if rd.Delay <= 0 {
				add("%s: readiness: delay must be positive", where)
			}
		default:
			add("%s: readiness: unknown kind %q", where, rd.Kind)
		}
		if rd.Timeout < 0 {
			add("%s: readiness: timeout must not be negative", where)
		}

		for j, a := range s.Assertions {
			if err := checkLocator(a.Locator); err != nil {
				add("%s: assertion %d: %v", where, j+1, err)
			}
		}

		if in := s.Interaction; in != nil {
			if err := checkLocator(in.Trigger); err != nil {
				add("%s: interaction trigger: %v", where, err)
			}
			for j, a := range in.Expect {
				if err := checkLocator(a.Locator); err != nil {
					add("%s: interaction expect %d: %v", where, j+1, err)
				}
			}
			if in.FallbackScreenshot != "" && !in.Optional {
				add("%s: fallback_screenshot only applies to optional triggers", where)
			}
			claim(where+" fallback", in.FallbackScreenshot)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return models.NewVerificationError(models.ErrCodeInvalidInput, "",
		fmt.Sprintf("invalid plan %q", p.Name), errors.Join(errs...))
}

// checkLocator enforces exactly one of css, role or label, with name only
// narrowing css or role.
func checkLocator(l models.Locator) error {
	set := 0
	for _, v := range []string{l.CSS, l.Role, l.Label} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return errors.New("locator needs css, role or label")
	case set > 1:
		return fmt.Errorf("locator %s sets more than one of css, role, label", l)
	case l.Name != "" && l.Label != "":
		return errors.New("name cannot narrow a label locator")
	}

	if l.CSS != "" {
		if _, err := cascadia.ParseGroup(l.CSS); err != nil {
			return fmt.Errorf("invalid css selector %q: %w", l.CSS, err)
		}
	}
	if l.Role != "" && strings.ContainsFunc(l.Role, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		return fmt.Errorf("role %q must be a lowercase ARIA role", l.Role)
	}
	return nil
}
