// Package extract reduces an arbitrary HTML page to a bounded text digest
// used to prime the analysis prompt. Extraction is best-effort by contract:
// any missing section degrades to an explicit "(none)" marker and building a
// digest never fails the caller.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// maxMainContent bounds the main-content section of the digest.
	maxMainContent = 1500
	// maxHeadings bounds how many H2 texts are included.
	maxHeadings = 8
	// maxButtons bounds how many CTA button labels are included.
	maxButtons = 5
	// maxButtonLen filters out long link texts that are not real buttons.
	maxButtonLen = 40

	noneMarker = "(none)"
)

// Digest is the structured text distillation of a marketing page.
type Digest struct {
	Title       string
	Description string
	Headlines   string // all H1 text, joined
	Headings    string // first H2 texts, joined
	Buttons     string // short button/CTA labels
	MainText    string // cleaned main-content text, truncated
}

// Text renders the digest as the fixed-section block fed into prompts.
func (d Digest) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", orNone(d.Title))
	fmt.Fprintf(&b, "Description: %s\n", orNone(d.Description))
	fmt.Fprintf(&b, "H1: %s\n", orNone(d.Headlines))
	fmt.Fprintf(&b, "H2: %s\n", orNone(d.Headings))
	fmt.Fprintf(&b, "Buttons: %s\n", orNone(d.Buttons))
	fmt.Fprintf(&b, "Main content: %s\n", orNone(d.MainText))
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return noneMarker
	}
	return s
}

// Fetcher downloads pages with a bounded timeout.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A zero timeout defaults to 10 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves the raw HTML of a page. Failure here is non-fatal to the
// pipeline: callers fall back to reasoning from the URL string alone.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "pivotlp/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}
	return string(body), nil
}

// BuildDigest extracts the digest sections from raw HTML. It never returns
// an error: unparseable input yields a digest of empty sections.
func BuildDigest(html string) Digest {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Digest{}
	}

	d := Digest{
		Title:       strings.TrimSpace(doc.Find("head title").First().Text()),
		Description: extractDescription(doc),
		Headlines:   joinTexts(doc.Find("h1"), -1),
		Headings:    joinTexts(doc.Find("h2"), maxHeadings),
		Buttons:     extractButtons(doc),
		MainText:    extractMainText(doc),
	}
	return d
}

// extractDescription prefers the meta description, falling back to OpenGraph.
func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

// joinTexts collects the text of up to limit elements (-1 for all).
func joinTexts(sel *goquery.Selection, limit int) string {
	var parts []string
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit >= 0 && i >= limit {
			return false
		}
		if text := collapseWhitespace(s.Text()); text != "" {
			parts = append(parts, text)
		}
		return true
	})
	return strings.Join(parts, " / ")
}

// extractButtons gathers short button and CTA-link labels.
func extractButtons(doc *goquery.Document) string {
	var labels []string
	doc.Find("button, a.btn, a.button, a[class*='cta'], input[type='submit']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(labels) >= maxButtons {
			return false
		}
		label := collapseWhitespace(s.Text())
		if label == "" {
			label, _ = s.Attr("value")
			label = collapseWhitespace(label)
		}
		if label != "" && len(label) <= maxButtonLen {
			labels = append(labels, label)
		}
		return true
	})
	return strings.Join(labels, " / ")
}

// extractMainText pulls cleaned body text from the most content-like region:
// the first of <main>, <article>, a hero-class <section>, then <body>.
func extractMainText(doc *goquery.Document) string {
	// Remove boilerplate before text extraction.
	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	selectors := []string{"main", "article", "section[class*='hero']", "body"}
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := collapseWhitespace(sel.Text())
		if text == "" {
			continue
		}
		// Truncate on runes so multibyte pages keep their full budget and
		// never end mid-character.
		if runes := []rune(text); len(runes) > maxMainContent {
			text = string(runes[:maxMainContent])
		}
		return text
	}
	return ""
}

// collapseWhitespace squashes all runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
