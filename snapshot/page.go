package snapshot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// invisible matches elements whose content never renders as page text.
const invisible = "script,style,noscript,template"

// Page is the analysed form of a rendered document.
type Page struct {
	Title                string
	Text                 string
	TextFingerprint      uint64
	StructureFingerprint uint64
}

// Analyze parses rendered HTML and fingerprints it.
func Analyze(rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	text := VisibleText(doc)
	return &Page{
		Title:                collapse(doc.Find("title").First().Text()),
		Text:                 text,
		TextFingerprint:      Fingerprint(text),
		StructureFingerprint: StructureFingerprint(doc),
	}, nil
}

// VisibleText returns the body text with scripts and styles removed and
// whitespace collapsed.
func VisibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find(invisible).Remove()
	return collapse(body.Text())
}

// StructureFingerprint hashes the order of element names inside the body,
// as 3-element shingles. Text and attributes are ignored, so two renders
// of the same template with different copy hash alike.
func StructureFingerprint(doc *goquery.Document) uint64 {
	var tags []string
	doc.Find("body *").Not(invisible).Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, goquery.NodeName(s))
	})
	if len(tags) == 0 {
		return 0
	}
	if sh := shingles(tags, 3); sh != nil {
		return fingerprintTokens(sh)
	}
	return fingerprintTokens(tags)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
