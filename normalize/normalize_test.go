package normalize

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blotter/extract"
)

func TestCleanFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		clean func(string) string
		in    string
		want  string
	}{
		{"charges bare continuation", CleanCharges, ": Driving while intoxicated", "Driving while intoxicated"},
		{"charges literal label", CleanCharges, "Charges: Driving while intoxicated", "Driving while intoxicated"},
		{"charges plain", CleanCharges, "Driving while intoxicated", "Driving while intoxicated"},
		{"details bare continuation", CleanDetails, ": shots fired on Main St.", "shots fired on Main St."},
		{"details literal label", CleanDetails, "Details: shots fired on Main St.", "shots fired on Main St."},
		{"legal lowercase label", CleanLegalActions, "Legal actions: Ticketed to appear", "Ticketed to appear"},
		{"legal capitalized label", CleanLegalActions, "Legal Actions: Ticketed to appear", "Ticketed to appear"},
		{"legal singular label", CleanLegalActions, "Legal action: Ticketed to appear", "Ticketed to appear"},
		{"legal bare continuation", CleanLegalActions, ": Ticketed to appear", "Ticketed to appear"},
		// The bare-continuation rule must win before any label test: a
		// value like ": Charges: pending" is a continuation whose content
		// happens to start with a label word.
		{"continuation beats label", CleanCharges, ": Charges: pending", "Charges: pending"},
		{"label mid-string untouched", CleanDetails, "Filed under Details: none", "Filed under Details: none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.clean(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeSingleValueCandidate(t *testing.T) {
	c := extract.Candidate{
		Name:         []string{"Julie M. Conners"},
		Age:          []string{"34"},
		Location:     []string{"Cold Brook Road, Homer"},
		Charges:      []string{"Charges: Driving while intoxicated"},
		Details:      []string{": Found parked on Riley Road."},
		LegalActions: []string{"Legal Actions: Ticketed."},
		Structured:   true,
	}

	got, err := Merge(c)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	want := Incident{
		Name:         "Julie M. Conners",
		Age:          "34",
		Location:     "Cold Brook Road, Homer",
		Charges:      "Driving while intoxicated",
		Details:      "Found parked on Riley Road.",
		LegalActions: "Ticketed.",
		Structured:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("incident mismatch (-want +got):\n%s", diff)
	}
}

// Multi-person incidents are persisted as one record with comma-joined
// fields, not one record per person.
func TestMergeParallelArraysJoinIntoOneRecord(t *testing.T) {
	c := extract.Candidate{
		Name:         []string{"Samuel J. Swan", "Adrianne L. Wagoner"},
		Age:          []string{"47", "40"},
		Location:     []string{"N/A", "Nye Road, Virgil"},
		Charges:      []string{"Failure to yield right of way"},
		Details:      []string{"A motorcycle crash on I-81."},
		LegalActions: []string{"Tickets issued."},
	}

	got, err := Merge(c)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got.Name != "Samuel J. Swan,Adrianne L. Wagoner" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Age != "47,40" {
		t.Errorf("age = %q", got.Age)
	}
	if got.Location != "N/A,Nye Road, Virgil" {
		t.Errorf("location = %q", got.Location)
	}
	if got.Charges != "Failure to yield right of way" {
		t.Errorf("charges = %q, want single value left alone", got.Charges)
	}
}

// A comma-joined value arriving as a single string passes through
// unchanged; Merge never splits it.
func TestMergePreJoinedValueNotSplit(t *testing.T) {
	c := extract.Candidate{
		Name:         []string{"Samuel J. Swan,Adrianne L. Wagoner"},
		Age:          []string{"47,40"},
		Location:     []string{"N/A,Nye Road, Virgil"},
		Charges:      []string{"Failure to yield"},
		Details:      []string{"Crash."},
		LegalActions: []string{"Tickets."},
		Structured:   true,
	}

	got, err := Merge(c)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got.Name != "Samuel J. Swan,Adrianne L. Wagoner" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Location != "N/A,Nye Road, Virgil" {
		t.Errorf("location = %q", got.Location)
	}
}

func TestMergeMismatchedLengths(t *testing.T) {
	c := extract.Candidate{
		Name:         []string{"A", "B"},
		Age:          []string{"1", "2", "3"},
		Location:     []string{"X"},
		Charges:      []string{"C"},
		Details:      []string{"D"},
		LegalActions: []string{"L"},
	}

	_, err := Merge(c)
	if !errors.Is(err, ErrMismatchedFields) {
		t.Fatalf("err = %v, want ErrMismatchedFields", err)
	}
}

func TestMergeCleansEachPersonValue(t *testing.T) {
	c := extract.Candidate{
		Name:         []string{"A", "B"},
		Age:          []string{"1", "2"},
		Location:     []string{"X", "Y"},
		Charges:      []string{"Charges: DWI", "Charges: Speeding"},
		Details:      []string{"D"},
		LegalActions: []string{"L"},
	}

	got, err := Merge(c)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got.Charges != "DWI,Speeding" {
		t.Errorf("charges = %q, want per-person values cleaned before joining", got.Charges)
	}
}
