// Package report persists run reports and compares runs of the same plan.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/use-agent/pageshot/models"
)

// FileName is the report written into a run's output directory.
const FileName = "report.json"

// Write stores r as indented JSON in r.OutputDir and returns the path. The
// file is replaced atomically so readers never see a partial report.
func Write(r *models.RunReport) (string, error) {
	if r.OutputDir == "" {
		return "", fmt.Errorf("report for plan %q has no output dir", r.Plan)
	}
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(r.OutputDir, FileName)
	tmp, err := os.CreateTemp(r.OutputDir, ".report-*.json")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a report written by Write. path may be the report file or the
// output directory containing it.
func Load(path string) (*models.RunReport, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r models.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &r, nil
}
