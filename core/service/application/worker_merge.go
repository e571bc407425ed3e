package application

import (
	"sort"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/service/reconcile"
)

// PlanMerge builds the merged record from at least two applications, given in
// request order. The primary falls back to the first record when primaryID is
// not among them. Inputs are not modified.
func PlanMerge(apps []*domain.Application, primaryID string, now time.Time) *domain.MergeRecord {
	primaryIdx := 0
	for i, a := range apps {
		if a.ID == primaryID {
			primaryIdx = i
			break
		}
	}
	primary := apps[primaryIdx]
	merged := primary.Clone()

	var absorbed []*domain.Application
	for i, a := range apps {
		if i != primaryIdx {
			absorbed = append(absorbed, a)
		}
	}

	latest := apps[0]
	for _, a := range apps[1:] {
		if a.LatestActivity().After(latest.LatestActivity()) {
			latest = a
		}
	}

	merged.Status = latest.Status
	merged.Sentiment = latest.Sentiment
	merged.Urgency = latest.Urgency
	merged.NextAction = latest.NextAction
	merged.Confidence = latest.Confidence
	merged.KeyDetails = latest.KeyDetails
	merged.Subject = latest.Subject
	merged.From = latest.From
	merged.Body = latest.Body
	merged.HTMLContent = latest.HTMLContent
	merged.Preview = latest.Preview
	merged.GmailID = latestGmailID(latest)
	merged.LastGmailID = merged.GmailID
	merged.LastEmailDate = latest.LatestActivity()
	merged.LastEmailSubject = firstNonEmpty(latest.LastEmailSubject, latest.Subject)
	merged.LastEmailFrom = firstNonEmpty(latest.LastEmailFrom, latest.From)

	if manual := latestManual(primary, absorbed); manual != nil {
		merged.Status = manual.Status
		merged.Urgency = manual.Urgency
		merged.ManuallyUpdated = true
	}

	var history []domain.EmailHistoryEntry
	seen := make(map[string]struct{})
	for _, a := range apps {
		entries := a.EmailHistory
		if len(entries) == 0 {
			entries = []domain.EmailHistoryEntry{synthesizeEntry(a)}
		}
		for _, e := range entries {
			if e.GmailID != "" {
				if _, ok := seen[e.GmailID]; ok {
					continue
				}
				seen[e.GmailID] = struct{}{}
			}
			history = append(history, e)
		}
		merged.ImportantDates = domain.MergeDates(merged.ImportantDates, a.ImportantDates)
		if a.Date.After(merged.Date) {
			merged.Date = a.Date
		}
		if a.ScrapedAt.After(merged.ScrapedAt) {
			merged.ScrapedAt = a.ScrapedAt
		}
	}
	domain.SortHistory(history)
	merged.EmailHistory = history

	absorbedIDs := make([]string, 0, len(absorbed))
	for _, a := range absorbed {
		absorbedIDs = append(absorbedIDs, a.ID)
		merged.MergedFrom = appendUnique(merged.MergedFrom, a.MergedFrom...)
	}
	merged.MergedFrom = appendUnique(merged.MergedFrom, absorbedIDs...)

	mergedAt := now
	merged.MergedAt = &mergedAt
	merged.ManuallyMerged = true
	merged.UpdatedAt = now

	return &domain.MergeRecord{PrimaryID: primary.ID, AbsorbedIDs: absorbedIDs, Result: merged}
}

// latestManual picks whose manual edits survive: the primary's when it has
// any, else the most recently active manual absorbed record.
func latestManual(primary *domain.Application, absorbed []*domain.Application) *domain.Application {
	if primary.ManuallyUpdated {
		return primary
	}
	var pick *domain.Application
	for _, a := range absorbed {
		if !a.ManuallyUpdated {
			continue
		}
		if pick == nil || a.LatestActivity().After(pick.LatestActivity()) {
			pick = a
		}
	}
	return pick
}

func synthesizeEntry(a *domain.Application) domain.EmailHistoryEntry {
	return reconcile.NewHistoryEntry(latestGmailID(a), firstNonEmpty(a.LastEmailSubject, a.Subject),
		a.LatestActivity(), a.Status, a.Sentiment, a.Body, a.HTMLContent)
}

func latestGmailID(a *domain.Application) string {
	return firstNonEmpty(a.LastGmailID, a.GmailID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func appendUnique(list []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	sort.Strings(list)
	return list
}
