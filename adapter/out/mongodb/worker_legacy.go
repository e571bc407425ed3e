package mongodb

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// legacyAnalysisField held the classification before it moved to the top level.
const legacyAnalysisField = "aiAnalysis"

var legacyAnalysisKeys = []string{
	"company", "position", "status", "sentiment", "urgency",
	"nextAction", "importantDates", "confidence", "keyDetails",
}

var timeFields = []string{"date", "scrapedAt", "lastEmailDate", "updatedAt", "mergedAt"}

// fallbackOrder is where an unreadable date borrows its value from.
var fallbackOrder = []string{"date", "lastEmailDate", "scrapedAt", "updatedAt"}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	// Date.prototype.toString without the zone name
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

// decodeApplication reads a stored document in canonical shape. Older documents
// keep the analysis under aiAnalysis, store dates as strings or use free-text
// enum values; all of these are normalized here.
func decodeApplication(raw bson.M) (*domain.Application, error) {
	normalizeLegacy(raw)

	data, err := bson.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode application: %w", err)
	}
	var app domain.Application
	if err := bson.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("decode application %v: %w", raw["id"], err)
	}

	app.Status = domain.ParseStatus(string(app.Status))
	app.Sentiment = domain.ParseSentiment(string(app.Sentiment))
	app.Urgency = domain.ParseUrgency(string(app.Urgency))
	for i := range app.EmailHistory {
		app.EmailHistory[i].Status = domain.ParseStatus(string(app.EmailHistory[i].Status))
		app.EmailHistory[i].Sentiment = domain.ParseSentiment(string(app.EmailHistory[i].Sentiment))
	}
	if app.ImportantDates == nil {
		app.ImportantDates = []string{}
	}
	if app.LastGmailID == "" {
		app.LastGmailID = app.GmailID
	}
	return &app, nil
}

func normalizeLegacy(raw bson.M) {
	delete(raw, "_id")

	if nested, ok := asMap(raw[legacyAnalysisField]); ok {
		for _, k := range legacyAnalysisKeys {
			if isEmpty(raw[k]) && !isEmpty(nested[k]) {
				raw[k] = nested[k]
			}
		}
	}
	delete(raw, legacyAnalysisField)

	var unreadable []string
	for _, f := range timeFields {
		if !convertTime(raw, f) {
			unreadable = append(unreadable, f)
		}
	}

	var historyLatest time.Time
	var badEntries []bson.M
	if history, ok := raw["emailHistory"].(primitive.A); ok {
		for i, entry := range history {
			m, ok := asMap(entry)
			if !ok {
				continue
			}
			if !convertTime(m, "date") {
				badEntries = append(badEntries, m)
			} else if t, ok := asTime(m["date"]); ok && t.After(historyLatest) {
				historyLatest = t
			}
			history[i] = m
		}
	}

	if len(unreadable) == 0 && len(badEntries) == 0 {
		return
	}
	fallback, ok := firstTime(raw, unreadable)
	if !ok && !historyLatest.IsZero() {
		fallback, ok = historyLatest, true
	}
	logger.Warn("[ApplicationAdapter.decode] %v: unreadable dates %v and %d history dates, falling back to %v",
		raw["id"], unreadable, len(badEntries), fallback)
	for _, f := range unreadable {
		if ok {
			raw[f] = fallback
		} else {
			delete(raw, f)
		}
	}
	for _, m := range badEntries {
		if ok {
			m["date"] = fallback
		} else {
			delete(m, "date")
		}
	}
}

// convertTime turns a string date into a time. It reports false, leaving the
// field untouched, when the text matches no known format.
func convertTime(m bson.M, field string) bool {
	s, ok := m[field].(string)
	if !ok {
		return true
	}
	if t, ok := parseLegacyTime(s); ok {
		m[field] = t
		return true
	}
	return false
}

// parseLegacyTime reads the date forms older writers stored: ISO 8601, the raw
// RFC 5322 Date header and the JavaScript Date string.
func parseLegacyTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if i := strings.Index(s, " ("); i > 0 {
		if t, err := time.Parse("Mon Jan 02 2006 15:04:05 GMT-0700", s[:i]); err == nil {
			return t.UTC(), true
		}
	}
	var h mail.Header
	h.Set("Date", s)
	if t, err := h.Date(); err == nil && !t.IsZero() {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func firstTime(raw bson.M, skip []string) (time.Time, bool) {
	for _, f := range fallbackOrder {
		if contains(skip, f) {
			continue
		}
		if t, ok := asTime(raw[f]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case primitive.DateTime:
		return t.Time().UTC(), true
	}
	return time.Time{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func asMap(v interface{}) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return bson.M(t), true
	case primitive.D:
		return t.Map(), true
	}
	return nil, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case primitive.A:
		return len(t) == 0
	}
	return false
}
