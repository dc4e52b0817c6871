// Package format converts markup-rich model answers into plain text that the
// downstream messaging platform renders predictably: HTML anchors and bare
// URLs become superscript citation markers backed by a deduplicated source
// list, and markdown decoration is removed.
package format

import (
	"regexp"
	"strings"
)

// Citation is one collected source reference.
type Citation struct {
	Marker string `json:"marker"`
	URL    string `json:"url"`
	Label  string `json:"label"`
}

// Result is the outcome of normalizing one raw answer.
type Result struct {
	BodyText      string     `json:"bodyText"`
	CitationBlock string     `json:"citationBlock"`
	Citations     []Citation `json:"citations"`
}

// DefaultLabel is used for sources that appear as bare URLs with no anchor text.
const DefaultLabel = "Source"

var (
	anchorRe      = regexp.MustCompile(`(?i)<a\s+href="([^"]+)"[^>]*>([^<]+)</a>`)
	bareURLRe     = regexp.MustCompile(`https?://[^\s\]\)\>\<\"']+`)
	residualTagRe = regexp.MustCompile(`</?[^>]+>`)
	bulletRe      = regexp.MustCompile(`(?m)^[*\-]\s+`)

	boldRe             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe           = regexp.MustCompile(`\*([^*\n]+?)\*`)
	boldUnderscoreRe   = regexp.MustCompile(`__(.+?)__`)
	italicUnderscoreRe = regexp.MustCompile(`_([^_\n]+?)_`)

	trailingSpaceRe = regexp.MustCompile(` +\n`)
	excessNewlineRe = regexp.MustCompile(`\n{3,}`)

	// Parenthesized runs of citation markers joined by semicolons,
	// e.g. (¹; ²) or ([16]; ¹).
	markerToken   = `(?:[¹²³⁴⁵⁶⁷⁸⁹⁰]+|\[\d+\])`
	markerGroupRe = regexp.MustCompile(`\(\s*` + markerToken + `(?:\s*;\s*` + markerToken + `)+\s*\)`)
)

const bulletIndent = "  " // two em spaces

// collector registers citations in first-seen order, deduplicated by URL.
type collector struct {
	citations []Citation
	byURL     map[string]int
}

func newCollector() *collector {
	return &collector{byURL: map[string]int{}}
}

// register returns the marker for url, adding a new citation if the URL has
// not been seen. The first label registered for a URL wins.
func (c *collector) register(url, label string) string {
	if idx, ok := c.byURL[url]; ok {
		return c.citations[idx].Marker
	}
	if label == "" {
		label = DefaultLabel
	}
	idx := len(c.citations)
	c.byURL[url] = idx
	c.citations = append(c.citations, Citation{
		Marker: Marker(idx),
		URL:    url,
		Label:  label,
	})
	return c.citations[idx].Marker
}

func (c *collector) block() string {
	if len(c.citations) == 0 {
		return ""
	}
	entries := make([]string, 0, len(c.citations))
	for _, cit := range c.citations {
		entries = append(entries, cit.Marker+" "+cit.Label+"\n"+cit.URL)
	}
	return strings.TrimSpace(strings.Join(entries, "\n\n"))
}

// Normalize transforms a raw model answer into plain body text plus an
// ordered citation block. It is a total function: empty input yields an
// empty result, and no input can make it fail. The passes run in a fixed
// order; later passes assume anchors were already replaced by markers.
func Normalize(raw string) Result {
	if raw == "" {
		return Result{}
	}

	sources := newCollector()
	text := raw

	// 1. Anchor elements become markers; URL is the dedup key.
	text = anchorRe.ReplaceAllStringFunc(text, func(match string) string {
		m := anchorRe.FindStringSubmatch(match)
		return sources.register(m[1], strings.TrimSpace(m[2]))
	})

	// 2. Bare URLs left in the text become markers too.
	text = bareURLRe.ReplaceAllStringFunc(text, func(match string) string {
		trimmed := strings.TrimRight(match, ".,;:!?")
		suffix := match[len(trimmed):]
		return sources.register(trimmed, "") + suffix
	})

	// 3. Any remaining angle-bracket tags are dropped.
	text = residualTagRe.ReplaceAllString(text, "")

	// 4. Markdown list bullets become indented bullet glyphs.
	text = bulletRe.ReplaceAllString(text, bulletIndent+"• ")

	// 5. Emphasis wrappers are stripped. Messenger renders literal
	// asterisks and underscores inconsistently, so no emphasis survives.
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = boldUnderscoreRe.ReplaceAllString(text, "$1")
	text = italicUnderscoreRe.ReplaceAllString(text, "$1")

	// 6. Whitespace cleanup.
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = excessNewlineRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	// 7. (¹; ²) reads badly next to superscripts; flatten to bare markers.
	text = markerGroupRe.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.TrimSpace(match[1 : len(match)-1])
		parts := strings.Split(inner, ";")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return strings.Join(parts, " ")
	})

	return Result{
		BodyText:      text,
		CitationBlock: sources.block(),
		Citations:     sources.citations,
	}
}
