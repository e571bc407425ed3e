package ingest

import (
	"context"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// feed adapts an EventSink to the levels of the live sync log.
type feed struct {
	ctx  context.Context
	sink out.EventSink
	now  func() time.Time
}

func newFeed(ctx context.Context, sink out.EventSink, now func() time.Time) *feed {
	if sink == nil {
		sink = out.NopSink{}
	}
	return &feed{ctx: ctx, sink: sink, now: now}
}

func (f *feed) emit(level domain.LogLevel, msg string, data map[string]any) {
	f.sink.Emit(f.ctx, domain.SyncLogEvent{Timestamp: f.now(), Level: level, Message: msg, Data: data})
}

func (f *feed) info(msg string, data map[string]any)    { f.emit(domain.LogInfo, msg, data) }
func (f *feed) step(msg string, data map[string]any)    { f.emit(domain.LogStep, msg, data) }
func (f *feed) success(msg string, data map[string]any) { f.emit(domain.LogSuccess, msg, data) }
func (f *feed) warning(msg string, data map[string]any) { f.emit(domain.LogWarning, msg, data) }
func (f *feed) fail(msg string, data map[string]any)    { f.emit(domain.LogError, msg, data) }
func (f *feed) company(msg string, data map[string]any) { f.emit(domain.LogCompany, msg, data) }
func (f *feed) ai(msg string, data map[string]any)      { f.emit(domain.LogAI, msg, data) }
func (f *feed) email(msg string, data map[string]any)   { f.emit(domain.LogEmail, msg, data) }

func (f *feed) progress(current, total int) {
	pct := 100
	if total > 0 {
		pct = current * 100 / total
	}
	f.emit(domain.LogProgress, "Processing emails", map[string]any{
		"current":    current,
		"total":      total,
		"percentage": pct,
	})
}
