package report

import (
	"fmt"
	"path/filepath"

	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/snapshot"
)

// Thresholds bound how far fingerprints of the same step may drift between
// two runs, in differing bits out of 64.
type Thresholds struct {
	Text      int
	Structure int
}

// DefaultThresholds tolerate dynamic copy such as dates and counters.
var DefaultThresholds = Thresholds{Text: 6, Structure: 3}

// Comparison is the result of Compare.
type Comparison struct {
	Equivalent  bool     `json:"equivalent"`
	Differences []string `json:"differences,omitempty"`
}

// Compare checks that two runs of a plan are structurally equivalent: same
// status, same steps in the same order with the same outcomes and
// screenshot names, and page fingerprints within th. Timings, absolute
// paths and warnings text are ignored.
func Compare(a, b *models.RunReport, th Thresholds) *Comparison {
	c := &Comparison{}
	diff := func(format string, args ...any) {
		c.Differences = append(c.Differences, fmt.Sprintf(format, args...))
	}

	if a.Plan != b.Plan {
		diff("plan: %q vs %q", a.Plan, b.Plan)
	}
	if a.Status != b.Status {
		diff("status: %s vs %s", a.Status, b.Status)
	}
	if len(a.Steps) != len(b.Steps) {
		diff("step count: %d vs %d", len(a.Steps), len(b.Steps))
	}

	for i := range min(len(a.Steps), len(b.Steps)) {
		sa, sb := a.Steps[i], b.Steps[i]
		where := fmt.Sprintf("step %d (%s)", i+1, sa.Name)

		if sa.Name != sb.Name {
			diff("%s: name %q vs %q", where, sa.Name, sb.Name)
			continue
		}
		if sa.Outcome != sb.Outcome {
			diff("%s: outcome %s vs %s", where, sa.Outcome, sb.Outcome)
		}
		if filepath.Base(sa.Screenshot) != filepath.Base(sb.Screenshot) {
			diff("%s: screenshot %q vs %q", where, filepath.Base(sa.Screenshot), filepath.Base(sb.Screenshot))
		}
		if sa.Snapshot == nil || sb.Snapshot == nil {
			continue
		}
		if d := snapshot.Distance(sa.Snapshot.TextFingerprint, sb.Snapshot.TextFingerprint); d > th.Text {
			diff("%s: page text drifted by %d bits (max %d)", where, d, th.Text)
		}
		if d := snapshot.Distance(sa.Snapshot.StructureFingerprint, sb.Snapshot.StructureFingerprint); d > th.Structure {
			diff("%s: page structure drifted by %d bits (max %d)", where, d, th.Structure)
		}
	}

	c.Equivalent = len(c.Differences) == 0
	return c
}
