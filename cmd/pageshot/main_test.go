package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/plan"
	"github.com/use-agent/pageshot/report"
)

type testState struct {
	*globalState
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestState() *testState {
	color.NoColor = true
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testState{
		globalState: &globalState{cfg: config.Load(), stdout: out, stderr: errOut},
		out:         out,
		err:         errOut,
	}
}

func (ts *testState) run(args ...string) int {
	return run(context.Background(), ts.globalState, args)
}

func TestPlans_List(t *testing.T) {
	ts := newTestState()

	require.Equal(t, 0, ts.run("plans"))
	for _, name := range plan.Names() {
		assert.Contains(t, ts.out.String(), name)
	}
}

func TestPlans_PrintYAMLIsLoadable(t *testing.T) {
	ts := newTestState()

	require.Equal(t, 0, ts.run("plans", "layout"))

	p, err := plan.Parse(ts.out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, plan.Layout, p.Name)
	assert.NoError(t, plan.Validate(p))
}

func TestPlans_Unknown(t *testing.T) {
	ts := newTestState()

	assert.Equal(t, 1, ts.run("plans", "nope"))
	assert.Contains(t, ts.err.String(), "NOT_FOUND")
}

func writeReport(t *testing.T, dir string, outcome models.Outcome) string {
	t.Helper()
	rep := &models.RunReport{
		Plan:      "integration",
		Status:    models.RunStatusPassed,
		OutputDir: dir,
		Steps: []models.StepResult{
			{Name: "registration page", Outcome: outcome, Screenshot: filepath.Join(dir, "01_registration-page.png")},
		},
	}
	path, err := report.Write(rep)
	require.NoError(t, err)
	return path
}

func TestCompare(t *testing.T) {
	a := writeReport(t, t.TempDir(), models.OutcomeCompleted)
	b := writeReport(t, t.TempDir(), models.OutcomeCompleted)
	c := writeReport(t, t.TempDir(), models.OutcomeWarning)

	ts := newTestState()
	assert.Equal(t, 0, ts.run("compare", a, filepath.Dir(b)))
	assert.Contains(t, ts.out.String(), "equivalent")

	ts = newTestState()
	assert.Equal(t, 1, ts.run("compare", a, c))
	assert.Contains(t, ts.err.String(), "not equivalent")
}

func TestRun_RejectsPlanNameWithPlanFile(t *testing.T) {
	ts := newTestState()

	assert.Equal(t, 1, ts.run("run", "layout", "--plan-file", "x.yaml"))
	assert.Contains(t, ts.err.String(), "not both")
}

func TestRun_InvalidPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nsteps:\n  - name: a\n    screenshot: a.jpg\n"), 0o644))

	ts := newTestState()
	assert.Equal(t, 1, ts.run("run", "--plan-file", path))
	assert.Contains(t, ts.err.String(), "INVALID_INPUT")
}

func TestRun_PreflightFailureWritesReport(t *testing.T) {
	site := t.TempDir()
	out := t.TempDir()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	yaml := "name: missing\nsteps:\n  - name: home\n    file: nowhere.html\n    screenshot: home.png\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	ts := newTestState()
	code := ts.run("run", "--plan-file", path, "--site-dir", site, "--output-dir", out, "--preflight")
	assert.Equal(t, 1, code)
	assert.Contains(t, ts.err.String(), "FAIL missing")
	assert.Contains(t, ts.err.String(), "TARGET_UNREACHABLE")

	rep, err := report.Load(out)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, rep.Status)
}
