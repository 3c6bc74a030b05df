package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/use-agent/pageshot/models"
)

// Recorder implements runner.Recorder. It always fingerprints the page and,
// when Markdown is enabled, writes a .md rendition next to the screenshot.
type Recorder struct {
	markdown bool
	conv     *converter.Converter
}

// NewRecorder creates a Recorder. The converter is goroutine-safe and
// reused across steps.
func NewRecorder(markdown bool) *Recorder {
	return &Recorder{
		markdown: markdown,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Record analyses the rendered page of step. A Markdown failure still
// returns the fingerprints alongside the error.
func (r *Recorder) Record(ctx context.Context, step models.Step, screenshot, rawHTML, title string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := Analyze(rawHTML)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = page.Title
	}
	snap := &models.Snapshot{
		Title:                title,
		TextFingerprint:      page.TextFingerprint,
		StructureFingerprint: page.StructureFingerprint,
	}
	if !r.markdown || screenshot == "" {
		return snap, nil
	}

	md, err := r.conv.ConvertString(rawHTML, converter.WithDomain(domainOf(step.Target)))
	if err != nil {
		return snap, fmt.Errorf("convert to markdown: %w", err)
	}

	path := MarkdownPath(screenshot)
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "<!-- %s -->\n", title)
	}
	fmt.Fprintf(&b, "<!-- source: %s -->\n\n", step.Target)
	b.WriteString(strings.TrimSpace(md))
	b.WriteString("\n")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return snap, err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return snap, fmt.Errorf("write markdown: %w", err)
	}
	snap.MarkdownPath = path
	return snap, nil
}

// MarkdownPath returns the evidence file path for a screenshot:
// "out/01_registration-page.png" -> "out/01_registration-page.md".
func MarkdownPath(screenshot string) string {
	return strings.TrimSuffix(screenshot, filepath.Ext(screenshot)) + ".md"
}

// domainOf returns the origin used to absolutise relative links, or "" for
// file targets.
func domainOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
