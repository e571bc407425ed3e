// Package reconcile decides how classified messages change the application set.
package reconcile

import (
	"sort"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// MatchSource records which gate admitted a message.
type MatchSource string

const (
	SourceCompanyDirectory MatchSource = "company_directory"
	SourceKeyword          MatchSource = "keyword"
)

type Outcome string

const (
	OutcomeRejected Outcome = "rejected-by-confidence"
	OutcomeCreated  Outcome = "new-application"
	OutcomeUpdated  Outcome = "update-application"
	OutcomeStale    Outcome = "skip-stale"
)

const (
	ReasonNotJobApplication = "not_job_application"
	ReasonLowConfidence     = "low_confidence"
	ReasonAlreadyRecorded   = "already_recorded"
	ReasonNotNewer          = "not_newer"
)

// History entries keep the message content, bounded so a long thread stays
// well inside the document size limit.
const (
	HistoryBodyLimit = 64 << 10
	HistoryHTMLLimit = 128 << 10
)

// NewHistoryEntry records one message against an application.
func NewHistoryEntry(gmailID, subject string, date time.Time, status domain.ApplicationStatus, sentiment domain.Sentiment, body, html string) domain.EmailHistoryEntry {
	return domain.EmailHistoryEntry{
		GmailID:     gmailID,
		Subject:     subject,
		Date:        date,
		Status:      status,
		Sentiment:   sentiment,
		Body:        domain.Clip(body, HistoryBodyLimit),
		HTMLContent: domain.Clip(html, HistoryHTMLLimit),
	}
}

// Policy holds the acceptance thresholds. A message passes when its confidence
// is strictly greater than the threshold for its source.
type Policy struct {
	CompanyMatchThreshold float64 `yaml:"company_match_threshold"`
	KeywordMatchThreshold float64 `yaml:"keyword_match_threshold"`
}

func DefaultPolicy() Policy {
	return Policy{CompanyMatchThreshold: 0.5, KeywordMatchThreshold: 0.7}
}

func (p Policy) threshold(src MatchSource) float64 {
	if src == SourceCompanyDirectory {
		return p.CompanyMatchThreshold
	}
	return p.KeywordMatchThreshold
}

// Candidate is a classified message waiting for reconciliation.
type Candidate struct {
	Email    *domain.ExtractedEmail
	Judgment domain.Judgment
	Source   MatchSource
}

// Decision is the outcome for one candidate.
type Decision struct {
	GmailID       string
	ApplicationID string
	Company       string
	Position      string
	Outcome       Outcome
	Reason        string
}

type Counts struct {
	Created  int
	Updated  int
	Skipped  int
	Rejected int
}

// Plan is the result of one reconciliation. Writes holds every record that
// must be persisted, at most once per id.
type Plan struct {
	Writes    []*domain.Application
	Decisions []Decision
	Counts    Counts
}

type Engine struct {
	policy Policy
}

func New(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Reconcile groups accepted candidates by application id, orders each group by
// message date and folds it over the existing record. existing is not modified.
func (e *Engine) Reconcile(existing map[string]*domain.Application, candidates []Candidate, now time.Time) *Plan {
	plan := &Plan{}
	groups := make(map[string][]Candidate)
	var ids []string

	for _, c := range candidates {
		if reason, ok := e.accept(c); !ok {
			d := Decision{GmailID: c.Email.GmailID, Company: c.Judgment.Company, Position: c.Judgment.Position, Outcome: OutcomeRejected, Reason: reason}
			if reason == ReasonLowConfidence {
				d.ApplicationID = domain.DeriveApplicationID(c.Judgment.Company, c.Judgment.Position)
			}
			plan.Decisions = append(plan.Decisions, d)
			plan.Counts.Rejected++
			continue
		}
		id := domain.DeriveApplicationID(c.Judgment.Company, c.Judgment.Position)
		if _, ok := groups[id]; !ok {
			ids = append(ids, id)
		}
		groups[id] = append(groups[id], c)
	}

	sort.Strings(ids)
	for _, id := range ids {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			di, dj := group[i].Email.Date, group[j].Email.Date
			if !di.Equal(dj) {
				return di.Before(dj)
			}
			return group[i].Email.GmailID < group[j].Email.GmailID
		})

		var record *domain.Application
		if cur, ok := existing[id]; ok && cur != nil {
			record = cur.Clone()
		}

		changed := false
		for _, c := range group {
			var outcome Outcome
			var reason string
			record, outcome, reason = e.apply(record, id, c, now)

			switch outcome {
			case OutcomeCreated:
				plan.Counts.Created++
				changed = true
			case OutcomeUpdated:
				plan.Counts.Updated++
				changed = true
			case OutcomeStale:
				plan.Counts.Skipped++
			}
			plan.Decisions = append(plan.Decisions, Decision{
				GmailID:       c.Email.GmailID,
				ApplicationID: id,
				Company:       record.Company,
				Position:      record.Position,
				Outcome:       outcome,
				Reason:        reason,
			})
		}
		if changed {
			plan.Writes = append(plan.Writes, record)
		}
	}
	return plan
}

func (e *Engine) accept(c Candidate) (string, bool) {
	if !c.Judgment.IsJobApplication {
		return ReasonNotJobApplication, false
	}
	if c.Judgment.Confidence <= e.policy.threshold(c.Source) {
		return ReasonLowConfidence, false
	}
	return "", true
}

func (e *Engine) apply(record *domain.Application, id string, c Candidate, now time.Time) (*domain.Application, Outcome, string) {
	msg, j := c.Email, c.Judgment

	if record == nil {
		return newApplication(id, c, now), OutcomeCreated, ""
	}

	if record.ManuallyUpdated {
		if !record.AppendHistory(historyEntry(c)) {
			return record, OutcomeStale, ReasonAlreadyRecorded
		}
		if msg.Date.After(latest(record.LastEmailDate, record.Date)) {
			refreshLastEmail(record, msg, now)
		}
		record.UpdatedAt = now
		return record, OutcomeUpdated, ""
	}

	if !msg.Date.After(record.Date) || record.HasHistoryEntry(msg.GmailID) {
		return record, OutcomeStale, ReasonNotNewer
	}

	record.Status = j.Status
	record.Sentiment = j.Sentiment
	record.Urgency = j.Urgency
	record.NextAction = j.NextAction
	record.Confidence = j.Confidence
	if j.KeyDetails != "" {
		record.KeyDetails = j.KeyDetails
	}
	record.ImportantDates = domain.MergeDates(record.ImportantDates, j.ImportantDates)
	record.Subject = msg.Subject
	record.From = msg.From
	record.Date = msg.Date
	if msg.Date.After(record.LastEmailDate) {
		refreshLastEmail(record, msg, now)
	}
	record.AppendHistory(historyEntry(c))
	record.UpdatedAt = now
	return record, OutcomeUpdated, ""
}

func newApplication(id string, c Candidate, now time.Time) *domain.Application {
	msg, j := c.Email, c.Judgment
	return &domain.Application{
		ID:               id,
		GmailID:          msg.GmailID,
		LastGmailID:      msg.GmailID,
		Company:          j.Company,
		Position:         j.Position,
		Status:           j.Status,
		Sentiment:        j.Sentiment,
		Urgency:          j.Urgency,
		NextAction:       j.NextAction,
		ImportantDates:   domain.MergeDates(nil, j.ImportantDates),
		Confidence:       j.Confidence,
		KeyDetails:       j.KeyDetails,
		Subject:          msg.Subject,
		From:             msg.From,
		Date:             msg.Date,
		Body:             msg.PlainText,
		HTMLContent:      msg.HTMLContent,
		Preview:          msg.Preview,
		ScrapedAt:        now,
		LastEmailDate:    msg.Date,
		LastEmailSubject: msg.Subject,
		LastEmailFrom:    msg.From,
		EmailHistory:     []domain.EmailHistoryEntry{historyEntry(c)},
		ManuallyUpdated:  false,
		UpdatedAt:        now,
	}
}

// refreshLastEmail points the record at its freshest message.
func refreshLastEmail(r *domain.Application, msg *domain.ExtractedEmail, now time.Time) {
	r.GmailID = msg.GmailID
	r.LastGmailID = msg.GmailID
	r.LastEmailDate = msg.Date
	r.LastEmailSubject = msg.Subject
	r.LastEmailFrom = msg.From
	r.Body = msg.PlainText
	r.HTMLContent = msg.HTMLContent
	r.Preview = msg.Preview
	r.ScrapedAt = now
}

func historyEntry(c Candidate) domain.EmailHistoryEntry {
	return NewHistoryEntry(c.Email.GmailID, c.Email.Subject, c.Email.Date, c.Judgment.Status, c.Judgment.Sentiment,
		c.Email.PlainText, c.Email.HTMLContent)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
