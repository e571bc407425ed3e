package domain

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ApplicationStatus is the lifecycle stage of a job application.
type ApplicationStatus string

const (
	StatusReceived           ApplicationStatus = "received"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusInterviewCompleted ApplicationStatus = "interview_completed"
	StatusOffer              ApplicationStatus = "offer"
	StatusRejected           ApplicationStatus = "rejected"
	StatusFollowUpNeeded     ApplicationStatus = "follow_up_needed"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
	StatusOther              ApplicationStatus = "other"
)

// AllStatuses lists statuses in pipeline order.
var AllStatuses = []ApplicationStatus{
	StatusReceived,
	StatusUnderReview,
	StatusInterviewScheduled,
	StatusInterviewCompleted,
	StatusOffer,
	StatusRejected,
	StatusFollowUpNeeded,
	StatusWithdrawn,
	StatusOther,
}

func (s ApplicationStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus maps free text onto the enum; unknown values become other.
func ParseStatus(s string) ApplicationStatus {
	v := ApplicationStatus(normalizeEnum(s))
	if v.IsValid() {
		return v
	}
	return StatusOther
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) IsValid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

func ParseSentiment(s string) Sentiment {
	v := Sentiment(normalizeEnum(s))
	if v.IsValid() {
		return v
	}
	return SentimentNeutral
}

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

func (u Urgency) IsValid() bool {
	return u == UrgencyHigh || u == UrgencyMedium || u == UrgencyLow
}

func ParseUrgency(s string) Urgency {
	v := Urgency(normalizeEnum(s))
	if v.IsValid() {
		return v
	}
	return UrgencyLow
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// EmailHistoryEntry is one message that contributed to an application.
type EmailHistoryEntry struct {
	GmailID     string            `json:"gmailId" bson:"gmailId"`
	Subject     string            `json:"subject" bson:"subject"`
	Date        time.Time         `json:"date" bson:"date"`
	Status      ApplicationStatus `json:"status" bson:"status"`
	Sentiment   Sentiment         `json:"sentiment" bson:"sentiment"`
	Body        string            `json:"body,omitempty" bson:"body,omitempty"`
	HTMLContent string            `json:"htmlContent,omitempty" bson:"htmlContent,omitempty"`
}

// Application tracks one job application, keyed by company and position.
type Application struct {
	ID          string `json:"id" bson:"id"`
	UserID      string `json:"-" bson:"userId"`
	GmailID     string `json:"gmailId" bson:"gmailId"`
	LastGmailID string `json:"lastGmailId" bson:"lastGmailId"`

	Company        string            `json:"company" bson:"company"`
	Position       string            `json:"position" bson:"position"`
	Status         ApplicationStatus `json:"status" bson:"status"`
	Sentiment      Sentiment         `json:"sentiment" bson:"sentiment"`
	Urgency        Urgency           `json:"urgency" bson:"urgency"`
	NextAction     string            `json:"nextAction" bson:"nextAction"`
	ImportantDates []string          `json:"importantDates" bson:"importantDates"`
	Confidence     float64           `json:"confidence" bson:"confidence"`
	KeyDetails     string            `json:"keyDetails" bson:"keyDetails"`

	Subject     string    `json:"subject" bson:"subject"`
	From        string    `json:"from" bson:"from"`
	Date        time.Time `json:"date" bson:"date"`
	Body        string    `json:"body" bson:"body"`
	HTMLContent string    `json:"htmlContent,omitempty" bson:"htmlContent,omitempty"`
	Preview     string    `json:"preview" bson:"preview"`

	ScrapedAt        time.Time           `json:"scrapedAt" bson:"scrapedAt"`
	LastEmailDate    time.Time           `json:"lastEmailDate" bson:"lastEmailDate"`
	LastEmailSubject string              `json:"lastEmailSubject" bson:"lastEmailSubject"`
	LastEmailFrom    string              `json:"lastEmailFrom" bson:"lastEmailFrom"`
	EmailHistory     []EmailHistoryEntry `json:"emailHistory" bson:"emailHistory"`

	ManuallyUpdated bool       `json:"manuallyUpdated" bson:"manuallyUpdated"`
	ManuallyMerged  bool       `json:"manuallyMerged" bson:"manuallyMerged"`
	MergedFrom      []string   `json:"mergedFrom,omitempty" bson:"mergedFrom,omitempty"`
	MergedAt        *time.Time `json:"mergedAt,omitempty" bson:"mergedAt,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	// Revision counts stored writes. Conditional batches compare it.
	Revision int64 `json:"-" bson:"revision"`
}

// DeriveApplicationID builds the record id from company and position.
// Every rune outside [a-z0-9] after lowercasing becomes one underscore.
func DeriveApplicationID(company, position string) string {
	return slug(company) + "_" + slug(position)
}

func slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// LatestActivity is the freshest known message time: lastEmailDate, then date, then scrapedAt.
func (a *Application) LatestActivity() time.Time {
	switch {
	case !a.LastEmailDate.IsZero():
		return a.LastEmailDate
	case !a.Date.IsZero():
		return a.Date
	default:
		return a.ScrapedAt
	}
}

// Clone returns a deep copy safe to mutate.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.ImportantDates = append([]string(nil), a.ImportantDates...)
	c.EmailHistory = append([]EmailHistoryEntry(nil), a.EmailHistory...)
	c.MergedFrom = append([]string(nil), a.MergedFrom...)
	if a.MergedAt != nil {
		t := *a.MergedAt
		c.MergedAt = &t
	}
	return &c
}

// HasHistoryEntry reports whether a message already contributed to the record.
func (a *Application) HasHistoryEntry(gmailID string) bool {
	if gmailID == "" {
		return false
	}
	for _, e := range a.EmailHistory {
		if e.GmailID == gmailID {
			return true
		}
	}
	return false
}

// AppendHistory inserts the entry keeping history sorted by date ascending.
// Returns false when the message is already recorded.
func (a *Application) AppendHistory(entry EmailHistoryEntry) bool {
	if a.HasHistoryEntry(entry.GmailID) {
		return false
	}
	i := sort.Search(len(a.EmailHistory), func(i int) bool {
		return a.EmailHistory[i].Date.After(entry.Date)
	})
	a.EmailHistory = append(a.EmailHistory, EmailHistoryEntry{})
	copy(a.EmailHistory[i+1:], a.EmailHistory[i:])
	a.EmailHistory[i] = entry
	return true
}

// SortHistory orders entries by date ascending, keeping insertion order for ties.
func SortHistory(entries []EmailHistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

// MergeDates appends dates not yet present, preserving order.
func MergeDates(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, d := range existing {
		seen[d] = struct{}{}
	}
	for _, d := range incoming {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Clip cuts s to at most maxBytes without splitting a rune.
func Clip(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Preview returns the first n runes of text with whitespace collapsed.
func Preview(text string, n int) string {
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
