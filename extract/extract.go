// Package extract turns raw article content into candidate incident
// records. Two producers share the Candidate shape: a scanner for the
// labeled HTML micro-format used by blotter columns, and an LLM
// classifier for free-form articles.
package extract

import "errors"

var (
	// ErrFormatMismatch is returned when an incident block's field-label
	// count is wrong and not repairable. The caller quarantines the
	// article; no candidates are emitted.
	ErrFormatMismatch = errors.New("extract: field label count mismatch")

	// ErrParse is returned when the classifier's output cannot be decoded
	// in any accepted shape.
	ErrParse = errors.New("extract: classifier output parse failed")
)

// Candidate is one raw incident as produced by an extractor, before
// normalization. Every field holds one or more raw values: the
// structured scanner always yields single values (a multi-person
// incident arrives comma-joined inside one value, exactly as printed),
// while the classifier may return parallel arrays.
type Candidate struct {
	Name         []string
	Age          []string
	Location     []string
	Charges      []string
	Details      []string
	LegalActions []string

	// Structured records provenance: true for the micro-format scanner,
	// false for classifier output.
	Structured bool
}
