// Package plan defines, loads, validates and resolves verification plans.
package plan

import (
	"fmt"
	"time"

	"github.com/use-agent/pageshot/models"
)

// Built-in plan names.
const (
	Integration = "integration"
	Layout      = "layout"
	Redesign    = "redesign"
)

// redesignPages are the site pages captured after a visual redesign.
var redesignPages = []string{
	"index.html",
	"about.html",
	"apply.html",
	"blog.html",
	"contact.html",
	"events.html",
	"faq.html",
	"gallery.html",
	"press.html",
	"privacy-policy.html",
	"registration.html",
	"sponsors.html",
	"terms-of-service.html",
}

// Names lists the built-in plans in display order.
func Names() []string {
	return []string{Integration, Layout, Redesign}
}

// Builtin returns a fresh, unresolved copy of the named plan.
func Builtin(name string) (*models.Plan, error) {
	switch name {
	case Integration:
		return integrationPlan(), nil
	case Layout:
		return layoutPlan(), nil
	case Redesign:
		return redesignPlan(), nil
	}
	return nil, models.NewVerificationError(models.ErrCodeNotFound, "",
		fmt.Sprintf("unknown plan %q", name), nil)
}

// Infos summarises the built-in plans.
func Infos() []models.PlanInfo {
	infos := make([]models.PlanInfo, 0, len(Names()))
	for _, name := range Names() {
		p, _ := Builtin(name)
		infos = append(infos, Info(p))
	}
	return infos
}

// Info summarises p.
func Info(p *models.Plan) models.PlanInfo {
	return models.PlanInfo{Name: p.Name, Description: p.Description, Steps: len(p.Steps)}
}

func heading(name string) models.Locator {
	return models.Locator{Role: "heading", Name: name}
}

// integrationPlan checks the registration form, the backend connection test
// page and the sign-in modal on the home page.
func integrationPlan() *models.Plan {
	return &models.Plan{
		Name:        Integration,
		Description: "Registration form, backend connection test page and sign-in modal",
		Steps: []models.Step{
			{
				Name: "registration page",
				URL:  "/registration.html",
				Readiness: models.Readiness{
					Kind:    models.ReadinessElement,
					Locator: models.Locator{CSS: ".progress-container .progress-bar"},
					Timeout: models.Duration(10 * time.Second),
				},
				Assertions: []models.Assertion{
					{Description: "Personal Information heading is visible", Locator: heading("Personal Information")},
					{Description: "First Name field is visible", Locator: models.Locator{Label: "First Name *"}},
				},
				Screenshot: "01_registration-page.png",
			},
			{
				Name: "supabase test page",
				URL:  "/supabase-test.html",
				Readiness: models.Readiness{
					Kind:    models.ReadinessElement,
					Locator: heading("Supabase Connection Test"),
				},
				Screenshot: "02_supabase-test-page.png",
			},
			{
				Name: "auth modal",
				URL:  "/index.html",
				Interaction: &models.Interaction{
					Trigger:  models.Locator{CSS: "button.login-trigger"},
					Timeout:  models.Duration(5 * time.Second),
					Optional: true,
					Expect: []models.Assertion{
						{Description: "Sign In modal is visible", Locator: heading("Sign In")},
					},
					FallbackScreenshot: "03_index-page-no-button.png",
				},
				Screenshot: "03_auth-modal.png",
			},
		},
	}
}

// layoutPlan captures the home page at desktop and mobile sizes.
func layoutPlan() *models.Plan {
	step := func(name string, w, h int, shot string) models.Step {
		return models.Step{
			Name:       name,
			File:       "index.html",
			Viewport:   &models.Viewport{Width: w, Height: h},
			Readiness:  models.Readiness{Kind: models.ReadinessNetworkIdle},
			Screenshot: shot,
		}
	}
	return &models.Plan{
		Name:        Layout,
		Description: "Home page at desktop (1280x800) and mobile (375x667) sizes",
		Steps: []models.Step{
			step("desktop", 1280, 800, "desktop_view.png"),
			step("mobile", 375, 667, "mobile_view.png"),
		},
	}
}

// redesignPlan captures every site page once its preloader has faded out.
func redesignPlan() *models.Plan {
	p := &models.Plan{
		Name:        Redesign,
		Description: fmt.Sprintf("All %d site pages after the preloader settles", len(redesignPages)),
		Steps:       make([]models.Step, 0, len(redesignPages)),
	}
	for _, file := range redesignPages {
		name := models.PageName(file)
		p.Steps = append(p.Steps, models.Step{
			Name: name,
			File: file,
			Readiness: models.Readiness{
				Kind:  models.ReadinessDelay,
				Delay: models.Duration(time.Second),
			},
			Screenshot: name + ".png",
		})
	}
	return p
}
