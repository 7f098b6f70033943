package normalize

// Decision is the completeness classification of a merged incident.
type Decision int

const (
	// Keep means the record has enough substance to persist.
	Keep Decision = iota

	// Reject means the accused name is missing. Checked before anything
	// else; a nameless record is never persisted.
	Reject

	// DropSparse means the record has a name but nearly nothing else.
	// Logged, not persisted.
	DropSparse
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Reject:
		return "reject"
	case DropSparse:
		return "drop-sparse"
	default:
		return "unknown"
	}
}

// sparseLimit is the number of missing non-name fields a record may
// carry and still be kept. There are five such fields, so only a record
// missing all of them is dropped.
const sparseLimit = 4

// Classify decides whether a merged incident is persisted. The name
// check short-circuits: Reject takes precedence over the sparse count.
func Classify(inc Incident) Decision {
	if missing(inc.Name) {
		return Reject
	}

	absent := 0
	if missingAge(inc.Age) {
		absent++
	}
	if missing(inc.Location) {
		absent++
	}
	if missing(inc.Charges) {
		absent++
	}
	if missing(inc.Details) {
		absent++
	}
	if missing(inc.LegalActions) {
		absent++
	}

	if absent > sparseLimit {
		return DropSparse
	}
	return Keep
}
