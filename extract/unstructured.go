package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"blotter/llm"
)

// classifier instruction contract. The output keys are fixed; values
// must be strings; non-crime articles come back as all-sentinel. Label
// leakage from the source formatting is filtered here, never left to
// the model.
const (
	promptArticle = "You provide information on incidents that occurred in the following article: "
	promptList    = "There may be multiple incidents listed in a single article. When this is the case, you must use a list of JSON responses."
	promptFormat  = "All output must be provided in JSON format, with the following keys: accused_name, accused_age, accused_location, charges, details, legal_actions. All values must be strings. If the article is not about a crime, the output should be N/A."
	promptOmit    = "If the incident begins with 'Accused:', you must omit that incident from the output."
)

// Unstructured classifies free-form article text into candidate
// incidents via an LLM. Sampling is pinned to temperature zero so
// output is reproducible modulo model version drift.
type Unstructured struct {
	provider llm.Provider
	model    string
}

// NewUnstructured creates the classifier-backed extractor. The model
// may be empty, in which case the provider's configured default is used.
func NewUnstructured(provider llm.Provider, model string) *Unstructured {
	return &Unstructured{provider: provider, model: model}
}

// Extract issues one classification request for the article text and
// decodes the response into candidates. A malformed response returns
// ErrParse; retrying is the caller's choice.
func (u *Unstructured) Extract(ctx context.Context, content string) ([]Candidate, error) {
	resp, err := u.provider.Chat(ctx, llm.ChatRequest{
		Model: u.model,
		Messages: []llm.Message{
			{Role: "system", Content: promptArticle + content},
			{Role: "system", Content: promptList},
			{Role: "system", Content: promptFormat},
			{Role: "system", Content: promptOmit},
		},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}

	payloads, err := decodeIncidents(resp.Content)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, p := range payloads {
		name := strings.TrimSpace(strings.Join(p.Name, ","))
		// Known leakage from the source formatting: incidents whose
		// accused field is empty or still carries a raw label.
		if name == "" || strings.HasPrefix(name, "Accused:") || strings.HasPrefix(name, "Charges:") {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:         p.Name,
			Age:          p.Age,
			Location:     p.Location,
			Charges:      p.Charges,
			Details:      p.Details,
			LegalActions: p.LegalActions,
		})
	}
	return candidates, nil
}

type incidentPayload struct {
	Name         flexList `json:"accused_name"`
	Age          flexList `json:"accused_age"`
	Location     flexList `json:"accused_location"`
	Charges      flexList `json:"charges"`
	Details      flexList `json:"details"`
	LegalActions flexList `json:"legal_actions"`
}

// decodeIncidents handles the shapes the model actually produces, tried
// strictest first: a bare array of incident objects, an object whose
// single key wraps such an array, and a flat single incident object.
// Anything else is ErrParse.
func decodeIncidents(content string) ([]incidentPayload, error) {
	data := []byte(stripFences(content))

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty response: %w", ErrParse)
	}

	if trimmed[0] == '[' {
		var arr []incidentPayload
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return nil, fmt.Errorf("decoding incident array: %v: %w", err, ErrParse)
		}
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("decoding response object: %v: %w", err, ErrParse)
	}

	// Single wrapping array key, e.g. {"incidents": [...]}.
	if len(obj) == 1 {
		for _, raw := range obj {
			if len(raw) > 0 && raw[0] == '[' {
				var arr []incidentPayload
				if err := json.Unmarshal(raw, &arr); err != nil {
					return nil, fmt.Errorf("decoding wrapped incident array: %v: %w", err, ErrParse)
				}
				return arr, nil
			}
		}
	}

	// Flat single object: must at least carry the accused_name key to
	// count as an incident rather than an arbitrary object.
	if _, ok := obj["accused_name"]; !ok {
		return nil, fmt.Errorf("response has no incident shape: %w", ErrParse)
	}
	var single incidentPayload
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, fmt.Errorf("decoding flat incident: %v: %w", err, ErrParse)
	}
	return []incidentPayload{single}, nil
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flexList accepts a string, a number, or an array of strings. The
// contract demands strings, but models drift: ages come back as
// numbers, multi-person incidents as arrays.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = []string{s}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*f = arr
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = []string{n.String()}
		return nil
	}

	// Mixed array (strings and numbers).
	var rawArr []json.RawMessage
	if err := json.Unmarshal(data, &rawArr); err == nil {
		vals := make([]string, 0, len(rawArr))
		for _, raw := range rawArr {
			var el string
			if err := json.Unmarshal(raw, &el); err == nil {
				vals = append(vals, el)
				continue
			}
			var num json.Number
			if err := json.Unmarshal(raw, &num); err != nil {
				return fmt.Errorf("unsupported field element %s", raw)
			}
			vals = append(vals, num.String())
		}
		*f = vals
		return nil
	}

	if string(data) == "null" {
		*f = nil
		return nil
	}
	return fmt.Errorf("unsupported field value %s", data)
}
