package reconcile

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

var (
	t0  = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	now = time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC)
)

func candidate(gmailID string, date time.Time, status domain.ApplicationStatus, confidence float64, src MatchSource) Candidate {
	return Candidate{
		Email: &domain.ExtractedEmail{
			GmailID:   gmailID,
			Subject:   "Update " + gmailID,
			From:      "Acme <jobs@acme.com>",
			Date:      date,
			PlainText: "body " + gmailID,
			Preview:   "body " + gmailID,
		},
		Judgment: domain.Judgment{
			IsJobApplication: true,
			Company:          "Acme",
			Position:         "Engineer",
			Status:           status,
			Sentiment:        domain.SentimentNeutral,
			Urgency:          domain.UrgencyMedium,
			NextAction:       "Wait",
			Confidence:       confidence,
		},
		Source: src,
	}
}

func existingAcme(manual bool, status domain.ApplicationStatus) map[string]*domain.Application {
	return map[string]*domain.Application{
		"acme_engineer": {
			ID:              "acme_engineer",
			GmailID:         "g0",
			Company:         "Acme",
			Position:        "Engineer",
			Status:          status,
			Sentiment:       domain.SentimentNeutral,
			Urgency:         domain.UrgencyLow,
			NextAction:      "Wait for reply",
			Date:            t0,
			LastEmailDate:   t0,
			ManuallyUpdated: manual,
			EmailHistory:    []domain.EmailHistoryEntry{{GmailID: "g0", Date: t0, Status: status}},
		},
	}
}

func TestCreatesNewApplication(t *testing.T) {
	plan := New(DefaultPolicy()).Reconcile(nil, []Candidate{candidate("g1", t0, domain.StatusReceived, 0.9, SourceKeyword)}, now)

	require.Len(t, plan.Writes, 1)
	app := plan.Writes[0]
	assert.Equal(t, "acme_engineer", app.ID)
	assert.Equal(t, domain.StatusReceived, app.Status)
	assert.False(t, app.ManuallyUpdated)
	assert.Len(t, app.EmailHistory, 1)
	assert.Equal(t, "g1", app.GmailID)
	assert.Equal(t, now, app.ScrapedAt)
	assert.Equal(t, Counts{Created: 1}, plan.Counts)
}

func TestHistoryEntryKeepsContent(t *testing.T) {
	c := candidate("g1", t0, domain.StatusReceived, 0.9, SourceKeyword)
	c.Email.PlainText = strings.Repeat("long body line. ", 200)
	c.Email.HTMLContent = "<p>" + strings.Repeat("é", HistoryHTMLLimit) + "</p>"

	plan := New(DefaultPolicy()).Reconcile(nil, []Candidate{c}, now)
	require.Len(t, plan.Writes, 1)
	entry := plan.Writes[0].EmailHistory[0]
	assert.Equal(t, c.Email.PlainText, entry.Body)
	assert.LessOrEqual(t, len(entry.HTMLContent), HistoryHTMLLimit)
	assert.True(t, strings.HasPrefix(entry.HTMLContent, "<p>é"))
	assert.True(t, utf8.ValidString(entry.HTMLContent))
}

func TestUpdatesWhenNewer(t *testing.T) {
	existing := existingAcme(false, domain.StatusReceived)
	c := candidate("g1", t0.Add(48*time.Hour), domain.StatusInterviewScheduled, 0.85, SourceKeyword)

	plan := New(DefaultPolicy()).Reconcile(existing, []Candidate{c}, now)

	require.Len(t, plan.Writes, 1)
	app := plan.Writes[0]
	assert.Equal(t, domain.StatusInterviewScheduled, app.Status)
	assert.Len(t, app.EmailHistory, 2)
	assert.Equal(t, c.Email.Date, app.Date)
	assert.Equal(t, "g1", app.LastGmailID)
	assert.Equal(t, now, app.UpdatedAt)
	assert.Equal(t, domain.StatusReceived, existing["acme_engineer"].Status, "existing map must not be mutated")
	assert.Equal(t, Counts{Updated: 1}, plan.Counts)
}

func TestManualEditIsSticky(t *testing.T) {
	existing := existingAcme(true, domain.StatusRejected)
	c := candidate("g1", t0.Add(48*time.Hour), domain.StatusInterviewScheduled, 0.99, SourceCompanyDirectory)

	plan := New(DefaultPolicy()).Reconcile(existing, []Candidate{c}, now)

	require.Len(t, plan.Writes, 1)
	app := plan.Writes[0]
	assert.Equal(t, domain.StatusRejected, app.Status)
	assert.Equal(t, domain.UrgencyLow, app.Urgency)
	assert.Equal(t, "Wait for reply", app.NextAction)
	assert.Len(t, app.EmailHistory, 2)
	assert.Equal(t, c.Email.Date, app.LastEmailDate)
	assert.Equal(t, "g1", app.LastGmailID)
	assert.Equal(t, "body g1", app.Body)
	assert.True(t, app.ManuallyUpdated)
}

func TestManualRecordKeepsFreshestLastEmail(t *testing.T) {
	existing := existingAcme(true, domain.StatusOffer)
	older := candidate("g-old", t0.Add(-24*time.Hour), domain.StatusReceived, 0.9, SourceKeyword)

	plan := New(DefaultPolicy()).Reconcile(existing, []Candidate{older}, now)

	require.Len(t, plan.Writes, 1)
	app := plan.Writes[0]
	assert.Equal(t, "g-old", app.EmailHistory[0].GmailID, "older message is inserted in date order")
	assert.Equal(t, t0, app.LastEmailDate)
	assert.Equal(t, "g0", app.GmailID)
}

func TestSkipsStaleMessage(t *testing.T) {
	existing := existingAcme(false, domain.StatusOffer)
	c := candidate("g-old", t0.Add(-time.Hour), domain.StatusReceived, 0.9, SourceKeyword)

	plan := New(DefaultPolicy()).Reconcile(existing, []Candidate{c}, now)

	assert.Empty(t, plan.Writes)
	assert.Equal(t, Counts{Skipped: 1}, plan.Counts)
	assert.Equal(t, OutcomeStale, plan.Decisions[0].Outcome)
}

func TestNewestWinsUnderOutOfOrderArrival(t *testing.T) {
	d1, d2 := t0.Add(24*time.Hour), t0.Add(72*time.Hour)
	batch := []Candidate{
		candidate("g2", d2, domain.StatusOffer, 0.9, SourceKeyword),
		candidate("g1", d1, domain.StatusInterviewScheduled, 0.9, SourceKeyword),
	}

	plan := New(DefaultPolicy()).Reconcile(existingAcme(false, domain.StatusReceived), batch, now)

	require.Len(t, plan.Writes, 1)
	app := plan.Writes[0]
	assert.Equal(t, domain.StatusOffer, app.Status)
	require.Len(t, app.EmailHistory, 3)
	assert.Equal(t, []string{"g0", "g1", "g2"}, []string{app.EmailHistory[0].GmailID, app.EmailHistory[1].GmailID, app.EmailHistory[2].GmailID})
	assert.Equal(t, 2, plan.Counts.Updated)
}

func TestNewestWinsForNewRecord(t *testing.T) {
	batch := []Candidate{
		candidate("g2", t0.Add(time.Hour), domain.StatusRejected, 0.9, SourceKeyword),
		candidate("g1", t0, domain.StatusReceived, 0.9, SourceKeyword),
	}

	plan := New(DefaultPolicy()).Reconcile(nil, batch, now)

	require.Len(t, plan.Writes, 1)
	assert.Equal(t, domain.StatusRejected, plan.Writes[0].Status)
	assert.Len(t, plan.Writes[0].EmailHistory, 2)
	assert.Equal(t, Counts{Created: 1, Updated: 1}, plan.Counts)
}

func TestConfidenceGatingAsymmetry(t *testing.T) {
	e := New(DefaultPolicy())

	tests := []struct {
		name       string
		confidence float64
		source     MatchSource
		accepted   bool
	}{
		{"company match at 0.6", 0.6, SourceCompanyDirectory, true},
		{"keyword match at 0.6", 0.6, SourceKeyword, false},
		{"company match at 0.8", 0.8, SourceCompanyDirectory, true},
		{"keyword match at 0.8", 0.8, SourceKeyword, true},
		{"keyword match at exactly 0.7", 0.7, SourceKeyword, false},
		{"company match at exactly 0.5", 0.5, SourceCompanyDirectory, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := e.Reconcile(nil, []Candidate{candidate("g1", t0, domain.StatusReceived, tt.confidence, tt.source)}, now)
			assert.Equal(t, tt.accepted, len(plan.Writes) == 1)
			if !tt.accepted {
				assert.Equal(t, ReasonLowConfidence, plan.Decisions[0].Reason)
			}
		})
	}
}

func TestRejectsNonApplications(t *testing.T) {
	c := candidate("g1", t0, domain.StatusReceived, 0.99, SourceCompanyDirectory)
	c.Judgment.IsJobApplication = false

	plan := New(DefaultPolicy()).Reconcile(nil, []Candidate{c}, now)

	assert.Empty(t, plan.Writes)
	assert.Equal(t, Counts{Rejected: 1}, plan.Counts)
	assert.Equal(t, ReasonNotJobApplication, plan.Decisions[0].Reason)
}

func TestReconcileIsIdempotent(t *testing.T) {
	e := New(DefaultPolicy())
	batch := []Candidate{
		candidate("g1", t0, domain.StatusReceived, 0.9, SourceKeyword),
		candidate("g2", t0.Add(time.Hour), domain.StatusUnderReview, 0.9, SourceKeyword),
	}

	first := e.Reconcile(nil, batch, now)
	state := map[string]*domain.Application{}
	for _, w := range first.Writes {
		state[w.ID] = w
	}

	second := e.Reconcile(state, batch, now.Add(time.Hour))

	assert.Empty(t, second.Writes)
	assert.Equal(t, Counts{Skipped: 2}, second.Counts)
}

func TestManualRecordIgnoresReplays(t *testing.T) {
	existing := existingAcme(true, domain.StatusRejected)
	replay := candidate("g0", t0, domain.StatusReceived, 0.9, SourceKeyword)

	plan := New(DefaultPolicy()).Reconcile(existing, []Candidate{replay}, now)

	assert.Empty(t, plan.Writes)
	assert.Equal(t, ReasonAlreadyRecorded, plan.Decisions[0].Reason)
}

func TestDistinctPositionsStaySeparate(t *testing.T) {
	a := candidate("g1", t0, domain.StatusReceived, 0.9, SourceKeyword)
	b := candidate("g2", t0, domain.StatusReceived, 0.9, SourceKeyword)
	b.Judgment.Position = "Designer"

	plan := New(DefaultPolicy()).Reconcile(nil, []Candidate{a, b}, now)

	require.Len(t, plan.Writes, 2)
	assert.Equal(t, "acme_designer", plan.Writes[0].ID)
	assert.Equal(t, "acme_engineer", plan.Writes[1].ID)
}
