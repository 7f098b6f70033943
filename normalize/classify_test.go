package normalize

import "testing"

func fullIncident() Incident {
	return Incident{
		Name:         "Julie M. Conners",
		Age:          "34",
		Location:     "Homer",
		Charges:      "DWI",
		Details:      "Found parked on Riley Road.",
		LegalActions: "Ticketed.",
	}
}

func TestClassifyKeepComplete(t *testing.T) {
	if got := Classify(fullIncident()); got != Keep {
		t.Errorf("decision = %v, want keep", got)
	}
}

func TestClassifyRejectMissingName(t *testing.T) {
	for _, name := range []string{"", Sentinel} {
		inc := fullIncident()
		inc.Name = name
		if got := Classify(inc); got != Reject {
			t.Errorf("name %q: decision = %v, want reject", name, got)
		}
	}
}

// Reject takes precedence: a nameless record is rejected even when every
// other field is also missing.
func TestClassifyRejectBeforeSparseCount(t *testing.T) {
	inc := Incident{Name: Sentinel, Age: Sentinel, Location: Sentinel, Charges: Sentinel, Details: Sentinel, LegalActions: Sentinel}
	if got := Classify(inc); got != Reject {
		t.Errorf("decision = %v, want reject", got)
	}
}

func TestClassifySparseThreshold(t *testing.T) {
	// Exactly four missing non-name fields: still kept.
	inc := Incident{Name: "John Doe", Charges: "DWI", Age: Sentinel, Location: Sentinel, Details: Sentinel, LegalActions: Sentinel}
	if got := Classify(inc); got != Keep {
		t.Errorf("4 missing: decision = %v, want keep", got)
	}

	// All five missing: dropped.
	inc.Charges = Sentinel
	if got := Classify(inc); got != DropSparse {
		t.Errorf("5 missing: decision = %v, want drop-sparse", got)
	}
}

func TestClassifyZeroAgeCountsAsMissing(t *testing.T) {
	inc := Incident{Name: "John Doe", Age: "0", Location: Sentinel, Charges: Sentinel, Details: Sentinel, LegalActions: Sentinel}
	if got := Classify(inc); got != DropSparse {
		t.Errorf("decision = %v, want drop-sparse with zero age", got)
	}

	inc.Age = "47"
	if got := Classify(inc); got != Keep {
		t.Errorf("decision = %v, want keep with real age", got)
	}
}

func TestClassifyEmptyStringEqualsSentinel(t *testing.T) {
	inc := Incident{Name: "John Doe", Age: "", Location: "", Charges: "", Details: "", LegalActions: ""}
	if got := Classify(inc); got != DropSparse {
		t.Errorf("decision = %v, want drop-sparse for all-empty fields", got)
	}
}

func TestDecisionString(t *testing.T) {
	cases := map[Decision]string{Keep: "keep", Reject: "reject", DropSparse: "drop-sparse"}
	for d, want := range cases {
		if d.String() != want {
			t.Errorf("String(%d) = %q, want %q", int(d), d.String(), want)
		}
	}
}
