package plan

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/use-agent/pageshot/models"
)

// Confine checks a plan received from a remote client. Screenshots and
// files must be relative paths that stay inside their directory, absolute
// URLs must be http(s), and targets and the output dir are server-owned.
func Confine(p *models.Plan) error {
	var errs []error
	if p.OutputDir != "" {
		errs = append(errs, errors.New("output_dir cannot be set remotely"))
	}
	for i, s := range p.Steps {
		where := fmt.Sprintf("step %d (%s)", i+1, s.Name)
		if s.Target != "" {
			errs = append(errs, fmt.Errorf("%s: target cannot be set remotely", where))
		}
		if err := checkRelative(s.Screenshot); err != nil {
			errs = append(errs, fmt.Errorf("%s: screenshot: %w", where, err))
		}
		if in := s.Interaction; in != nil && in.FallbackScreenshot != "" {
			if err := checkRelative(in.FallbackScreenshot); err != nil {
				errs = append(errs, fmt.Errorf("%s: fallback_screenshot: %w", where, err))
			}
		}
		if s.File != "" {
			if err := checkRelative(s.File); err != nil {
				errs = append(errs, fmt.Errorf("%s: file: %w", where, err))
			}
		}
		if s.URL != "" {
			if u, err := url.Parse(s.URL); err == nil && u.IsAbs() && u.Scheme != "http" && u.Scheme != "https" {
				errs = append(errs, fmt.Errorf("%s: url scheme %q is not allowed", where, u.Scheme))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return models.NewVerificationError(models.ErrCodeInvalidInput, "",
		fmt.Sprintf("plan %q reaches outside the server directories", p.Name), errors.Join(errs...))
}

// CheckContained verifies a resolved plan writes only under its output dir
// and opens local files only under siteDir.
func CheckContained(p *models.Plan, siteDir string) error {
	for _, s := range p.Steps {
		shots := []string{s.Screenshot}
		if s.Interaction != nil && s.Interaction.FallbackScreenshot != "" {
			shots = append(shots, s.Interaction.FallbackScreenshot)
		}
		for _, shot := range shots {
			if !Within(p.OutputDir, shot) {
				return invalid(s.Name, fmt.Sprintf("screenshot %s is outside %s", shot, p.OutputDir), nil)
			}
		}

		u, err := url.Parse(s.Target)
		if err != nil {
			return invalid(s.Name, "invalid target "+s.Target, err)
		}
		if u.Scheme == "file" && !Within(siteDir, filepath.FromSlash(u.Path)) {
			return invalid(s.Name, fmt.Sprintf("file %s is outside the site dir", u.Path), nil)
		}
	}
	return nil
}

// SubDir joins rel onto root, refusing results outside root.
func SubDir(root, rel string) (string, error) {
	if err := checkRelative(rel); err != nil {
		return "", invalid("", "site_dir: "+err.Error(), nil)
	}
	return filepath.Join(root, rel), nil
}

// Within reports whether path is dir or lies below it.
func Within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func checkRelative(path string) error {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return fmt.Errorf("%q must be a relative path", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q leaves its directory", path)
	}
	return nil
}
