package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The micro-format prints six labeled fields per incident. A block runs
// from one "Accused:" label to the next. Label order within a block is
// fixed; the legal-actions label varies in capitalization in the source.
const (
	fieldName = iota
	fieldAge
	fieldLocation
	fieldCharges
	fieldDetails
	fieldLegal
	fieldCount
)

// label patterns, most specific first so "Accused age:" never matches
// as "Accused:". Each anchors at the start of a flattened line.
var labelPatterns = []struct {
	field int
	re    *regexp.Regexp
}{
	{fieldAge, regexp.MustCompile(`^Accused age:\s*`)},
	{fieldLocation, regexp.MustCompile(`^Accused location:\s*`)},
	{fieldName, regexp.MustCompile(`^Accused:\s*`)},
	{fieldCharges, regexp.MustCompile(`^Charges:\s*`)},
	{fieldDetails, regexp.MustCompile(`^Details:\s*`)},
	{fieldLegal, regexp.MustCompile(`(?i)^legal actions?:\s*`)},
}

var accusedRe = regexp.MustCompile(`^Accused:`)

// HasBlotterFormat reports whether the article markup contains at least
// one incident block of the labeled micro-format.
func HasBlotterFormat(htmlContent string) bool {
	for _, line := range flattenHTML(htmlContent) {
		if accusedRe.MatchString(line) {
			return true
		}
	}
	return false
}

// Structured extracts labeled incident blocks from article HTML.
//
// Every block must yield exactly six recognized labels. One short is
// repairable in a single known case: the source sometimes swallows the
// "Charges" label word, leaving a bare ": ..." continuation after the
// location field; the continuation is taken as the charges content
// (prefix intact, the normalizer strips it). Any other count routes the
// whole article to quarantine: the error is ErrFormatMismatch and no
// candidates are returned.
func Structured(htmlContent string) ([]Candidate, error) {
	lines := flattenHTML(htmlContent)

	var blocks [][]string
	for _, line := range lines {
		if accusedRe.MatchString(line) {
			blocks = append(blocks, []string{line})
			continue
		}
		if len(blocks) == 0 {
			continue // preamble before the first incident
		}
		blocks[len(blocks)-1] = append(blocks[len(blocks)-1], line)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no incident blocks found: %w", ErrFormatMismatch)
	}

	candidates := make([]Candidate, 0, len(blocks))
	for i, block := range blocks {
		c, err := parseBlock(block)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i+1, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// parseBlock scans one incident block's lines into a Candidate.
func parseBlock(lines []string) (Candidate, error) {
	var fields [fieldCount]string
	var found [fieldCount]bool
	current := -1
	labels := 0
	repaired := false

	for _, line := range lines {
		if f, rest, ok := matchLabel(line); ok {
			fields[f] = rest
			found[f] = true
			current = f
			labels++
			continue
		}

		// Swallowed "Charges" label: a bare ": " continuation directly
		// after the location field stands in for the missing label. The
		// prefix is kept; stripping it is the normalizer's job.
		if strings.HasPrefix(line, ": ") && current == fieldLocation && !found[fieldCharges] {
			fields[fieldCharges] = line
			found[fieldCharges] = true
			current = fieldCharges
			repaired = true
			continue
		}

		// Soft-separated continuation of the current field. The source
		// runs these together without whitespace.
		if current >= 0 {
			fields[current] += line
		}
	}

	switch {
	case labels == fieldCount:
		// well-formed
	case labels == fieldCount-1 && repaired:
		// known swallowed-label artifact
	default:
		return Candidate{}, fmt.Errorf("found %d of %d field labels: %w", labels, fieldCount, ErrFormatMismatch)
	}

	return Candidate{
		Name:         []string{fields[fieldName]},
		Age:          []string{fields[fieldAge]},
		Location:     []string{fields[fieldLocation]},
		Charges:      []string{fields[fieldCharges]},
		Details:      []string{fields[fieldDetails]},
		LegalActions: []string{fields[fieldLegal]},
		Structured:   true,
	}, nil
}

func matchLabel(line string) (field int, rest string, ok bool) {
	for _, lp := range labelPatterns {
		if loc := lp.re.FindStringIndex(line); loc != nil {
			return lp.field, line[loc[1]:], true
		}
	}
	return 0, "", false
}

// flattenHTML reduces markup to trimmed text lines. <br> and block
// elements are hard separators; inline tags (span, b, i, a) contribute
// their text to the surrounding line, which is how the source's inline
// spans behave.
func flattenHTML(raw string) []string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors; a string reader never
		// errors, but keep the fallback cheap anyway.
		return splitLines(raw)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteString("\n")
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	return splitLines(b.String())
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
