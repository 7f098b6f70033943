package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"blotter/llm"
)

// Blotter items rarely carry an absolute incident date; they say "on
// Tuesday" or "on Oct. 9" relative to the article. Date inference
// recovers an absolute date from the details text: weekday references
// resolve locally by calendar arithmetic, explicit month/day references
// go through the model with the article's publish year as the default.
// Inference is best-effort enrichment and never required for a record
// to be inserted.

var weekdayNames = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

// weekdayOrder fixes the scan order so the first-mentioned day of a
// deterministic list wins, as in the source's behavior.
var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIn returns the first weekday name found in the details text.
func WeekdayIn(details string) (time.Weekday, bool) {
	for _, name := range weekdayOrder {
		if strings.Contains(details, name) {
			return weekdayNames[name], true
		}
	}
	return 0, false
}

// LastWeekdayBefore returns the most recent date strictly before ref
// that falls on the given weekday.
func LastWeekdayBefore(w time.Weekday, ref time.Time) time.Time {
	d := ref.AddDate(0, 0, -1)
	for d.Weekday() != w {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// monthRefRe spots an explicit month/day mention, abbreviated or not.
var monthRefRe = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}\b`)

// HasExplicitDate reports whether the details mention a month/day.
func HasExplicitDate(details string) bool {
	return monthRefRe.MatchString(details)
}

// DateInferrer resolves incident dates from details text.
type DateInferrer struct {
	provider llm.Provider
	model    string
}

// NewDateInferrer creates a date inferrer backed by the given chat
// provider. The provider is only consulted for explicit month/day
// references; weekday math never leaves the process.
func NewDateInferrer(provider llm.Provider, model string) *DateInferrer {
	return &DateInferrer{provider: provider, model: model}
}

// Infer returns the inferred incident date in YYYY-MM-DD form, or ""
// when the details give nothing to work with or the model's answer is
// not date-shaped. Only transport failures surface as errors.
func (d *DateInferrer) Infer(ctx context.Context, details string, published time.Time) (string, error) {
	if w, ok := WeekdayIn(details); ok {
		return LastWeekdayBefore(w, published).Format("2006-01-02"), nil
	}

	if !HasExplicitDate(details) {
		return "", nil
	}

	resp, err := d.provider.Chat(ctx, llm.ChatRequest{
		Model: d.model,
		Messages: []llm.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"What was the date of the incident: %s? Return only the date as YYYY-MM-DD. Use the year in the article published date as the year: %s",
				details, published.Format("2006-01-02")),
		}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("date inference request: %w", err)
	}

	return parseDateAnswer(resp.Content), nil
}

// parseDateAnswer pulls a YYYY-MM-DD date out of the model's reply,
// taking the last whitespace-separated token. Anything not date-shaped
// yields "".
func parseDateAnswer(answer string) string {
	fields := strings.Fields(strings.TrimSpace(answer))
	if len(fields) == 0 {
		return ""
	}
	candidate := strings.Trim(fields[len(fields)-1], ".\"'")
	if len(candidate) != 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return ""
	}
	return candidate
}
