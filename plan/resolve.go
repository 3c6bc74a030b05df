package plan

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
)

// Params locates a plan's targets and outputs.
type Params struct {
	// BaseURL is joined with server-relative step URLs.
	BaseURL string
	// SiteDir is joined with step files.
	SiteDir string
	// OutputDir receives screenshots unless the plan names its own.
	OutputDir string
}

// ParamsFromConfig maps the runner section of the configuration.
func ParamsFromConfig(cfg config.RunnerConfig) Params {
	return Params{BaseURL: cfg.BaseURL, SiteDir: cfg.SiteDir, OutputDir: cfg.OutputDir}
}

// Resolve returns a copy of p with absolute targets, output dir and
// screenshot paths. p itself is left untouched.
func Resolve(p *models.Plan, params Params) (*models.Plan, error) {
	out := p.Clone()

	dir := out.OutputDir
	if dir == "" {
		dir = params.OutputDir
	}
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, invalid("", "cannot resolve output dir "+dir, err)
	}
	out.OutputDir = absDir

	for i := range out.Steps {
		s := &out.Steps[i]
		if s.Target == "" {
			target, err := resolveTarget(*s, params)
			if err != nil {
				return nil, err
			}
			s.Target = target
		}
		s.Screenshot = underDir(absDir, s.Screenshot)
		if s.Interaction != nil && s.Interaction.FallbackScreenshot != "" {
			s.Interaction.FallbackScreenshot = underDir(absDir, s.Interaction.FallbackScreenshot)
		}
	}
	return out, nil
}

func resolveTarget(s models.Step, params Params) (string, error) {
	if s.File != "" {
		path := s.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(params.SiteDir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", invalid(s.Name, "cannot resolve file "+s.File, err)
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return "", invalid(s.Name, "invalid url "+s.URL, err)
	}
	if u.IsAbs() {
		return s.URL, nil
	}

	base, err := url.Parse(params.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", invalid(s.Name, fmt.Sprintf("base url %q must be an absolute http(s) URL", params.BaseURL), err)
	}
	return strings.TrimRight(params.BaseURL, "/") + "/" + strings.TrimLeft(s.URL, "/"), nil
}

func underDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func invalid(step, msg string, err error) *models.VerificationError {
	return models.NewVerificationError(models.ErrCodeInvalidInput, step, msg, err)
}
