package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blotter/llm"
)

// stubChat returns a canned classifier response and records the request.
type stubChat struct {
	content string
	err     error
	lastReq llm.ChatRequest
}

func (s *stubChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func (s *stubChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("stub: no embeddings")
}

func TestUnstructuredWrappedArray(t *testing.T) {
	stub := &stubChat{content: `{"incidents": [
		{"accused_name": "John Q. Smith", "accused_age": "52", "accused_location": "Homer",
		 "charges": "Petit larceny", "details": "Smith took a bicycle Tuesday.", "legal_actions": "Ticketed."}
	]}`}

	got, err := NewUnstructured(stub, "test-model").Extract(context.Background(), "article text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []Candidate{{
		Name:         []string{"John Q. Smith"},
		Age:          []string{"52"},
		Location:     []string{"Homer"},
		Charges:      []string{"Petit larceny"},
		Details:      []string{"Smith took a bicycle Tuesday."},
		LegalActions: []string{"Ticketed."},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestUnstructuredBareArray(t *testing.T) {
	stub := &stubChat{content: `[
		{"accused_name": "A", "accused_age": "1", "accused_location": "X", "charges": "C", "details": "D", "legal_actions": "L"},
		{"accused_name": "B", "accused_age": "2", "accused_location": "Y", "charges": "C2", "details": "D2", "legal_actions": "L2"}
	]`}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
}

func TestUnstructuredFlatObjectBecomesSingleCandidate(t *testing.T) {
	stub := &stubChat{content: `{"accused_name": "Jane Roe", "accused_age": "41", "accused_location": "Cortland",
		"charges": "DWI", "details": "Stopped on Main St.", "legal_actions": "Arraigned."}`}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	if got[0].Name[0] != "Jane Roe" {
		t.Errorf("name = %q", got[0].Name[0])
	}
}

func TestUnstructuredNumericAgeAccepted(t *testing.T) {
	stub := &stubChat{content: `{"accused_name": "Jane Roe", "accused_age": 41, "accused_location": "N/A",
		"charges": "N/A", "details": "N/A", "legal_actions": "N/A"}`}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[0].Age[0] != "41" {
		t.Errorf("age = %q, want %q", got[0].Age[0], "41")
	}
}

func TestUnstructuredParallelArraysPreserved(t *testing.T) {
	stub := &stubChat{content: `{"incidents": [
		{"accused_name": ["Sam Swan", "Adrianne Wagoner"], "accused_age": ["47", 40],
		 "accused_location": ["N/A", "Virgil"], "charges": "Failure to yield",
		 "details": "Crash on I-81.", "legal_actions": "Tickets issued."}
	]}`}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff([]string{"Sam Swan", "Adrianne Wagoner"}, got[0].Name); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"47", "40"}, got[0].Age); diff != "" {
		t.Errorf("ages (-want +got):\n%s", diff)
	}
}

func TestUnstructuredFiltersLabelLeakage(t *testing.T) {
	stub := &stubChat{content: `[
		{"accused_name": "Accused: John", "accused_age": "30", "accused_location": "X", "charges": "C", "details": "D", "legal_actions": "L"},
		{"accused_name": "Charges: DWI", "accused_age": "30", "accused_location": "X", "charges": "C", "details": "D", "legal_actions": "L"},
		{"accused_name": "", "accused_age": "30", "accused_location": "X", "charges": "C", "details": "D", "legal_actions": "L"},
		{"accused_name": "Valid Person", "accused_age": "30", "accused_location": "X", "charges": "C", "details": "D", "legal_actions": "L"}
	]`}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1 after filtering", len(got))
	}
	if got[0].Name[0] != "Valid Person" {
		t.Errorf("name = %q", got[0].Name[0])
	}
}

func TestUnstructuredFencedJSON(t *testing.T) {
	stub := &stubChat{content: "```json\n{\"incidents\": [{\"accused_name\": \"A\", \"accused_age\": \"1\", \"accused_location\": \"X\", \"charges\": \"C\", \"details\": \"D\", \"legal_actions\": \"L\"}]}\n```"}

	got, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("candidates = %d, want 1", len(got))
	}
}

func TestUnstructuredMalformedOutputIsParseError(t *testing.T) {
	for name, content := range map[string]string{
		"not json":     "The article describes no crime.",
		"empty":        "",
		"wrong object": `{"weather": "sunny"}`,
		"truncated":    `{"incidents": [{"accused_name": "A"`,
	} {
		t.Run(name, func(t *testing.T) {
			stub := &stubChat{content: content}
			_, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
			if !errors.Is(err, ErrParse) {
				t.Fatalf("err = %v, want ErrParse", err)
			}
		})
	}
}

func TestUnstructuredProviderErrorPropagates(t *testing.T) {
	stub := &stubChat{err: errors.New("boom")}
	_, err := NewUnstructured(stub, "").Extract(context.Background(), "text")
	if err == nil || errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want transport error, not ErrParse", err)
	}
}

func TestUnstructuredRequestContract(t *testing.T) {
	stub := &stubChat{content: `{"incidents": []}`}
	u := NewUnstructured(stub, "gpt-4o-mini")
	if _, err := u.Extract(context.Background(), "some article"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	req := stub.lastReq
	if req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
	if req.ResponseFormat != "json_object" {
		t.Errorf("response format = %q, want json_object", req.ResponseFormat)
	}
	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(req.Messages))
	}
	if want := promptArticle + "some article"; req.Messages[0].Content != want {
		t.Errorf("first message = %q, want article prompt", req.Messages[0].Content)
	}
}

func TestPDFTextMissingFile(t *testing.T) {
	if _, err := PDFText("/nonexistent/blotter.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
