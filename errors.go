package blotter

import (
	"errors"

	"blotter/extract"
	"blotter/normalize"
	"blotter/store"
)

// Sentinel errors aliased from the subpackages that produce them, so
// callers can match pipeline outcomes without importing internals.
var (
	// ErrFormatMismatch is returned when the structured extractor finds a
	// field-label count it cannot repair. The article is quarantined, not
	// processed.
	ErrFormatMismatch = extract.ErrFormatMismatch

	// ErrParse is returned when the classifier's output is not valid
	// structured data in any accepted shape. Propagated to the caller;
	// there is no automatic retry.
	ErrParse = extract.ErrParse

	// ErrNormalize is returned when a candidate's parallel field arrays
	// have mismatched lengths. No partial record is persisted.
	ErrNormalize = normalize.ErrMismatchedFields

	// ErrDuplicate is returned by the store when an insert loses a race
	// against a concurrent writer on the natural key. The pipeline treats
	// it as a successful dedup outcome.
	ErrDuplicate = store.ErrDuplicate

	// ErrNoClassifier is returned when the unstructured path is needed but
	// no chat provider was configured.
	ErrNoClassifier = errors.New("blotter: no classifier provider configured")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("blotter: invalid configuration")
)
