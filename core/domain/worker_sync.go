package domain

import (
	"sort"
	"time"
)

// =============================================================================
// Sync checkpoint & run history
// =============================================================================

// SyncCheckpoint marks the start of the next fetch window for a user. Partial
// means the last run stopped at Timestamp with newer mail left unscanned, so
// the next window starts strictly after it.
type SyncCheckpoint struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Partial   bool      `json:"partial"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerAsync     SyncTrigger = "async"
	SyncTriggerScheduled SyncTrigger = "scheduled"
)

type SyncRunStatus string

const (
	SyncRunSucceeded SyncRunStatus = "succeeded"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun is the audit row written after every sync invocation.
type SyncRun struct {
	ID         int64         `json:"id"`
	UserID     string        `json:"user_id"`
	Trigger    SyncTrigger   `json:"trigger"`
	Status     SyncRunStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	WindowDays int           `json:"window_days"`
	Scanned    int           `json:"scanned"`
	Filtered   int           `json:"filtered"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Rejected   int           `json:"rejected"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// SyncResult is returned to the caller of a sync.
type SyncResult struct {
	CreatedCount  int       `json:"createdCount"`
	UpdatedCount  int       `json:"updatedCount"`
	SkippedCount  int       `json:"skippedCount"`
	RejectedCount int       `json:"rejectedCount"`
	FilteredCount int       `json:"filteredCount"`
	ScannedCount  int       `json:"scannedCount"`
	WindowDays    int       `json:"windowDays"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Summary       *Summary  `json:"summary"`
}

// =============================================================================
// Dashboard summary
// =============================================================================

const RecentApplicationsLimit = 10

type Summary struct {
	TotalApplications  int                       `json:"totalApplications"`
	StatusBreakdown    map[ApplicationStatus]int `json:"statusBreakdown"`
	Companies          []string                  `json:"companies"`
	UrgentEmails       []*Application            `json:"urgentEmails"`
	PositiveUpdates    []*Application            `json:"positiveUpdates"`
	NeedsFollowUp      []*Application            `json:"needsFollowUp"`
	RecentApplications []*Application            `json:"recentApplications"`
}

// Summarize aggregates the current application set. It never mutates apps.
func Summarize(apps []*Application) *Summary {
	s := &Summary{
		TotalApplications:  len(apps),
		StatusBreakdown:    make(map[ApplicationStatus]int),
		Companies:          []string{},
		UrgentEmails:       []*Application{},
		PositiveUpdates:    []*Application{},
		NeedsFollowUp:      []*Application{},
		RecentApplications: []*Application{},
	}

	seen := make(map[string]struct{})
	for _, app := range apps {
		s.StatusBreakdown[app.Status]++
		if app.Company != "" {
			if _, ok := seen[app.Company]; !ok {
				seen[app.Company] = struct{}{}
				s.Companies = append(s.Companies, app.Company)
			}
		}
		if app.Urgency == UrgencyHigh {
			s.UrgentEmails = append(s.UrgentEmails, app)
		}
		if app.Sentiment == SentimentPositive {
			s.PositiveUpdates = append(s.PositiveUpdates, app)
		}
		if app.Status == StatusFollowUpNeeded {
			s.NeedsFollowUp = append(s.NeedsFollowUp, app)
		}
	}
	sort.Strings(s.Companies)

	recent := append([]*Application(nil), apps...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].ScrapedAt.After(recent[j].ScrapedAt)
	})
	if len(recent) > RecentApplicationsLimit {
		recent = recent[:RecentApplicationsLimit]
	}
	s.RecentApplications = append(s.RecentApplications, recent...)
	return s
}

// SortByActivity orders applications newest activity first.
func SortByActivity(apps []*Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].LatestActivity().After(apps[j].LatestActivity())
	})
}
