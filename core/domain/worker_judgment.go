package domain

import "strings"

const (
	UnknownValue           = "Unknown"
	DefaultNextAction      = "Review manually"
	KeyDetailsParseFailure = "Failed to parse AI response"
	KeyDetailsCallFailure  = "AI analysis failed"
)

// Judgment is the validated structured output of the classifier.
type Judgment struct {
	IsJobApplication bool              `json:"isJobApplication"`
	Company          string            `json:"company"`
	Position         string            `json:"position"`
	Status           ApplicationStatus `json:"status"`
	Sentiment        Sentiment         `json:"sentiment"`
	Urgency          Urgency           `json:"urgency"`
	NextAction       string            `json:"nextAction"`
	ImportantDates   []string          `json:"importantDates"`
	Confidence       float64           `json:"confidence"`
	KeyDetails       string            `json:"keyDetails"`

	// Failed marks a judgment produced because classification could not complete.
	Failed bool `json:"-"`
}

// SafeDefaultJudgment is the non-job judgment returned when classification fails.
func SafeDefaultJudgment(keyDetails string) Judgment {
	return Judgment{
		IsJobApplication: false,
		Company:          UnknownValue,
		Position:         UnknownValue,
		Status:           StatusOther,
		Sentiment:        SentimentNeutral,
		Urgency:          UrgencyLow,
		NextAction:       DefaultNextAction,
		ImportantDates:   []string{},
		Confidence:       0,
		KeyDetails:       keyDetails,
		Failed:           true,
	}
}

// Normalize clamps and fills fields so downstream code can rely on valid values.
func (j Judgment) Normalize() Judgment {
	j.Company = strings.TrimSpace(j.Company)
	if j.Company == "" {
		j.Company = UnknownValue
	}
	j.Position = strings.TrimSpace(j.Position)
	if j.Position == "" {
		j.Position = UnknownValue
	}
	j.Status = ParseStatus(string(j.Status))
	j.Sentiment = ParseSentiment(string(j.Sentiment))
	j.Urgency = ParseUrgency(string(j.Urgency))
	if j.Confidence < 0 {
		j.Confidence = 0
	}
	if j.Confidence > 1 {
		j.Confidence = 1
	}
	if j.ImportantDates == nil {
		j.ImportantDates = []string{}
	}
	return j
}
