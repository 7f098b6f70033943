// Package normalize turns raw candidates into persistable incident
// records: it strips extraction artifacts from field text, merges
// multi-person candidates into a single record, and classifies record
// completeness.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"blotter/extract"
)

// Sentinel is the storage representation of an absent field. Inside
// this package absence is the empty string; the sentinel appears only
// where source text or storage already uses it.
const Sentinel = "N/A"

// ErrMismatchedFields is returned when a candidate's parallel field
// arrays disagree on the number of people. Nothing is repaired and no
// partial record is produced.
var ErrMismatchedFields = errors.New("normalize: mismatched parallel field lengths")

// Incident is the normalized unit handed to persistence. A multi-person
// incident is one record with comma-joined fields, not one record per
// person.
type Incident struct {
	ArticleID    int64
	Source       string // article URL
	ReportedDate string // YYYY-MM-DD, from the article's publish date
	IncidentDate string // backfilled by date inference; empty until then
	Name         string
	Age          string
	Location     string
	Charges      string
	Details      string
	LegalActions string
	Structured   bool
}

// A stripRule removes one known extraction artifact from the front of a
// field value. Rules are tried in order and the first match wins: the
// bare ": " continuation is always tested first, since a literal label
// test could otherwise be defeated by partial matches.
type stripRule struct {
	matches func(string) bool
	strip   func(string) string
}

func bareContinuation() stripRule {
	return stripRule{
		matches: func(s string) bool { return strings.HasPrefix(s, ": ") },
		strip:   func(s string) string { return s[2:] },
	}
}

func literalLabel(label string) stripRule {
	return stripRule{
		matches: func(s string) bool { return strings.HasPrefix(s, label) },
		strip:   func(s string) string { return s[len(label):] },
	}
}

func regexpLabel(re *regexp.Regexp) stripRule {
	return stripRule{
		matches: func(s string) bool { return re.MatchString(s) },
		strip:   func(s string) string { return re.ReplaceAllString(s, "") },
	}
}

// The legal-actions label varies in capitalization in the source.
var legalLabelRe = regexp.MustCompile(`(?i)^legal actions?: `)

var (
	chargesRules = []stripRule{bareContinuation(), literalLabel("Charges: ")}
	detailsRules = []stripRule{bareContinuation(), literalLabel("Details: ")}
	legalRules   = []stripRule{bareContinuation(), regexpLabel(legalLabelRe)}
)

func applyRules(v string, rules []stripRule) string {
	for _, r := range rules {
		if r.matches(v) {
			return r.strip(v)
		}
	}
	return v
}

// CleanCharges strips extraction artifacts from a charges value.
func CleanCharges(v string) string { return applyRules(v, chargesRules) }

// CleanDetails strips extraction artifacts from a details value.
func CleanDetails(v string) string { return applyRules(v, detailsRules) }

// CleanLegalActions strips extraction artifacts from a legal-actions
// value.
func CleanLegalActions(v string) string { return applyRules(v, legalRules) }

// Merge collapses a candidate into a single Incident, cleaning every
// field value. When the candidate carries parallel per-person arrays,
// each field must hold either one value or one per person; the merged
// record joins them with commas, matching how multi-person incidents
// are stored. Mismatched lengths are ErrMismatchedFields.
func Merge(c extract.Candidate) (Incident, error) {
	people := 1
	for _, vals := range [][]string{c.Name, c.Age, c.Location, c.Charges, c.Details, c.LegalActions} {
		if len(vals) > people {
			people = len(vals)
		}
	}

	join := func(field string, vals []string, clean func(string) string) (string, error) {
		if len(vals) > 1 && len(vals) != people {
			return "", fmt.Errorf("%s has %d values for %d people: %w", field, len(vals), people, ErrMismatchedFields)
		}
		cleaned := make([]string, len(vals))
		for i, v := range vals {
			cleaned[i] = clean(strings.TrimSpace(v))
		}
		return strings.Join(cleaned, ","), nil
	}

	identity := func(s string) string { return s }

	var inc Incident
	var err error
	if inc.Name, err = join("accused_name", c.Name, identity); err != nil {
		return Incident{}, err
	}
	if inc.Age, err = join("accused_age", c.Age, identity); err != nil {
		return Incident{}, err
	}
	if inc.Location, err = join("accused_location", c.Location, identity); err != nil {
		return Incident{}, err
	}
	if inc.Charges, err = join("charges", c.Charges, CleanCharges); err != nil {
		return Incident{}, err
	}
	if inc.Details, err = join("details", c.Details, CleanDetails); err != nil {
		return Incident{}, err
	}
	if inc.LegalActions, err = join("legal_actions", c.LegalActions, CleanLegalActions); err != nil {
		return Incident{}, err
	}
	inc.Structured = c.Structured
	return inc, nil
}

// missing reports whether a field value represents absent data.
func missing(v string) bool {
	return v == "" || v == Sentinel
}

// missingAge additionally treats a zero age as absent; the source
// prints "0" when no age was reported.
func missingAge(v string) bool {
	return missing(v) || v == "0"
}
