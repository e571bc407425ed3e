// Package ingest runs the incremental mailbox sync of a user.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/core/service/directory"
	"github.com/sanskarm7/JobCATGmail/core/service/extract"
	"github.com/sanskarm7/JobCATGmail/core/service/prefilter"
	"github.com/sanskarm7/JobCATGmail/core/service/reconcile"
	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const (
	DefaultLookbackDays = 50
	DefaultMaxMessages  = 500
	DefaultConcurrency  = 4

	// maxCommitAttempts bounds re-reconciliation after concurrent edits.
	maxCommitAttempts = 3
)

// Classifier turns a message into a validated judgment and never fails.
type Classifier interface {
	Classify(ctx context.Context, subject, body, from string) domain.Judgment
}

type Config struct {
	DefaultLookbackDays int
	MaxMessages         int
	Concurrency         int
	Policy              reconcile.Policy
	Prefilter           prefilter.Options
}

func DefaultConfig() Config {
	return Config{
		DefaultLookbackDays: DefaultLookbackDays,
		MaxMessages:         DefaultMaxMessages,
		Concurrency:         DefaultConcurrency,
		Policy:              reconcile.DefaultPolicy(),
	}
}

// Deps are the collaborators of the sync. Runs is optional.
type Deps struct {
	Applications out.ApplicationRepository
	Checkpoints  out.CheckpointRepository
	Runs         out.SyncRunRepository
	Mailbox      out.MailboxSource
	Credentials  out.CredentialProvider
	Classifier   Classifier
	Locker       out.SyncLocker
}

type SyncService struct {
	deps      Deps
	cfg       Config
	extractor *extract.Extractor
	filter    *prefilter.Filter
	engine    *reconcile.Engine
	now       func() time.Time
}

func NewSyncService(deps Deps, cfg Config) *SyncService {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = DefaultLookbackDays
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &SyncService{
		deps:      deps,
		cfg:       cfg,
		extractor: extract.New(),
		filter:    prefilter.New(cfg.Prefilter),
		engine:    reconcile.New(cfg.Policy),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source (for testing).
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// Sync runs load, checkpoint, fetch-and-classify, persist, advance and summary
// under the user's lock. The checkpoint only moves after the batch commits.
func (s *SyncService) Sync(ctx context.Context, userID string, trigger domain.SyncTrigger, sink out.EventSink) (*domain.SyncResult, error) {
	f := newFeed(ctx, sink, s.now)
	log := logger.WithContext(ctx).WithFields(map[string]any{"user_id": userID, "trigger": string(trigger)})

	release, err := s.deps.Locker.Acquire(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			f.warning("A sync is already running for this account", nil)
		}
		return nil, err
	}
	defer release()

	run := &domain.SyncRun{UserID: userID, Trigger: trigger, StartedAt: s.now()}
	result, err := s.run(ctx, userID, f, run, log)
	run.FinishedAt = s.now()

	if err != nil {
		run.Status = domain.SyncRunFailed
		run.ErrorCode = ErrorCode(err)
		log.WithError(err).Error("[SyncService.Sync] sync failed with %s", run.ErrorCode)
		f.fail("Sync failed", map[string]any{"code": run.ErrorCode, "error": err.Error()})
	} else {
		run.Status = domain.SyncRunSucceeded
		log.WithDuration(run.FinishedAt.Sub(run.StartedAt)).Info("[SyncService.Sync] created=%d updated=%d skipped=%d rejected=%d",
			result.CreatedCount, result.UpdatedCount, result.SkippedCount, result.RejectedCount)
	}
	s.recordRun(ctx, run)
	return result, err
}

func (s *SyncService) run(ctx context.Context, userID string, f *feed, run *domain.SyncRun, log *logger.Logger) (*domain.SyncResult, error) {
	startedAt := run.StartedAt

	// 1. load-existing-applications
	f.step("Loading existing applications", nil)
	apps, err := s.deps.Applications.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}
	existing := make(map[string]*domain.Application, len(apps))
	for _, a := range apps {
		existing[a.ID] = a
	}
	dir := directory.Build(apps, s.filter)
	f.info(fmt.Sprintf("Loaded %d applications across %d companies", len(apps), dir.Len()), map[string]any{
		"applications": len(apps),
		"companies":    dir.Len(),
	})

	// 2. resolve-checkpoint
	cp, err := s.deps.Checkpoints.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	run.WindowDays = s.windowDays(cp, startedAt)
	if cp == nil {
		f.step(fmt.Sprintf("First sync, scanning the last %d days", run.WindowDays), map[string]any{"windowDays": run.WindowDays})
	} else {
		f.step(fmt.Sprintf("Scanning the last %d days since the previous sync", run.WindowDays), map[string]any{
			"windowDays": run.WindowDays,
			"lastSync":   cp.Timestamp,
		})
	}

	// 3. fetch-and-classify
	token, err := s.deps.Credentials.TokenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	query := domain.MailboxQuery{NewerThanDays: run.WindowDays}
	if cp != nil && cp.Partial {
		// resume right after the last message the capped run got to
		query.After = cp.Timestamp
	}
	refs, err := s.deps.Mailbox.ListMessages(ctx, token, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	deferred := 0
	if len(refs) > s.cfg.MaxMessages {
		// listings are newest first; the oldest part is scanned now and the
		// checkpoint stops at it, so the rest is picked up by the next run
		deferred = len(refs) - s.cfg.MaxMessages
		refs = refs[deferred:]
		f.warning(fmt.Sprintf("Found more than %d emails, %d newer ones are left for the next sync", s.cfg.MaxMessages, deferred),
			map[string]any{"deferred": deferred, "limit": s.cfg.MaxMessages})
	}
	run.Scanned = len(refs)
	f.info(fmt.Sprintf("Found %d emails to check", len(refs)), map[string]any{"total": len(refs)})

	scan, err := s.classifyAll(ctx, token, refs, dir, f)
	if err != nil {
		return nil, err
	}
	run.Filtered = scan.filtered
	run.Warnings = scan.warnings

	// 4. reconcile + persist-batch
	plan, existing, err := s.persist(ctx, userID, existing, scan.candidates, startedAt, f)
	if err != nil {
		return nil, err
	}
	for _, d := range plan.Decisions {
		switch d.Outcome {
		case reconcile.OutcomeCreated:
			f.company(fmt.Sprintf("New application: %s, %s", d.Company, d.Position), map[string]any{"id": d.ApplicationID})
		case reconcile.OutcomeUpdated:
			f.company(fmt.Sprintf("Updated application: %s, %s", d.Company, d.Position), map[string]any{"id": d.ApplicationID})
		}
	}
	run.Created, run.Updated = plan.Counts.Created, plan.Counts.Updated
	run.Skipped, run.Rejected = plan.Counts.Skipped, plan.Counts.Rejected

	// 5. advance-checkpoint
	advanceTo, partial := startedAt, false
	if deferred > 0 {
		advanceTo, partial = s.partialCheckpoint(cp, scan.newest, deferred, run, f)
	}
	if err := s.deps.Checkpoints.Advance(ctx, userID, advanceTo, partial); err != nil {
		return nil, fmt.Errorf("advance checkpoint: %w", err)
	}

	// 6. recompute-summary from the committed state
	current := make([]*domain.Application, 0, len(existing))
	for _, a := range existing {
		current = append(current, a)
	}
	domain.SortByActivity(current)
	summary := domain.Summarize(current)

	result := &domain.SyncResult{
		CreatedCount:  plan.Counts.Created,
		UpdatedCount:  plan.Counts.Updated,
		SkippedCount:  plan.Counts.Skipped,
		RejectedCount: plan.Counts.Rejected,
		FilteredCount: scan.filtered,
		ScannedCount:  len(refs),
		WindowDays:    run.WindowDays,
		StartedAt:     startedAt,
		FinishedAt:    s.now(),
		Summary:       summary,
	}
	f.success(fmt.Sprintf("Sync complete: %d new, %d updated, %d skipped", result.CreatedCount, result.UpdatedCount, result.SkippedCount), map[string]any{
		"createdCount": result.CreatedCount,
		"updatedCount": result.UpdatedCount,
		"skippedCount": result.SkippedCount,
	})
	log.Debug("[SyncService.run] window=%dd scanned=%d deferred=%d filtered=%d", run.WindowDays, len(refs), deferred, scan.filtered)
	return result, nil
}

// persist reconciles the candidates against the snapshot and commits the writes
// on the condition that none of the touched records changed since it was read.
// A manual edit, merge or delete in the meantime makes it reload and reconcile
// again; candidates whose record vanished are dropped instead of recreating it.
func (s *SyncService) persist(ctx context.Context, userID string, existing map[string]*domain.Application, candidates []reconcile.Candidate, now time.Time, f *feed) (*reconcile.Plan, map[string]*domain.Application, error) {
	for attempt := 1; ; attempt++ {
		plan := s.engine.Reconcile(existing, candidates, now)
		if len(plan.Writes) == 0 {
			return plan, existing, nil
		}

		f.step(fmt.Sprintf("Saving %d applications", len(plan.Writes)), nil)
		batch := &domain.WriteBatch{Puts: plan.Writes, Expect: make(map[string]int64, len(plan.Writes))}
		for _, w := range plan.Writes {
			if cur, ok := existing[w.ID]; ok {
				batch.Expect[w.ID] = cur.Revision
			}
		}
		err := s.deps.Applications.Commit(ctx, userID, batch)
		if err == nil {
			for _, w := range plan.Writes {
				existing[w.ID] = w
			}
			return plan, existing, nil
		}

		if !errors.Is(err, domain.ErrRevisionConflict) || attempt == maxCommitAttempts {
			var sce *domain.StoreCommitError
			if !errors.As(err, &sce) {
				err = &domain.StoreCommitError{Op: "sync batch", Err: err}
			}
			return nil, nil, err
		}

		logger.WithContext(ctx).Info("[SyncService.persist] applications of %s changed during the sync, attempt %d", userID, attempt)
		f.info("Applications changed while syncing, reconciling again", map[string]any{"attempt": attempt})
		apps, err := s.deps.Applications.List(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("reload applications: %w", err)
		}
		fresh := make(map[string]*domain.Application, len(apps))
		for _, a := range apps {
			fresh[a.ID] = a
		}
		candidates = dropVanished(candidates, existing, fresh)
		existing = fresh
	}
}

// dropVanished removes candidates aimed at records that existed in before but
// are gone from after.
func dropVanished(candidates []reconcile.Candidate, before, after map[string]*domain.Application) []reconcile.Candidate {
	kept := candidates[:0:0]
	for _, c := range candidates {
		id := domain.DeriveApplicationID(c.Judgment.Company, c.Judgment.Position)
		_, was := before[id]
		_, is := after[id]
		if was && !is {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// partialCheckpoint picks the checkpoint of a run that left newer messages
// unscanned: the newest message it did scan, flagged partial so the next run
// lists strictly after it. When that would not move the checkpoint forward,
// the run falls back to its start time so syncing cannot stall, and the
// skipped messages are reported.
func (s *SyncService) partialCheckpoint(cp *domain.SyncCheckpoint, newest time.Time, deferred int, run *domain.SyncRun, f *feed) (time.Time, bool) {
	var prev time.Time
	if cp != nil {
		prev = cp.Timestamp
	}
	if newest.After(prev) && newest.Before(run.StartedAt) {
		run.Warnings = append(run.Warnings, fmt.Sprintf("%d newer messages deferred to the next sync", deferred))
		return newest, true
	}
	msg := fmt.Sprintf("%d messages were skipped because the window holds more than %d emails", deferred, s.cfg.MaxMessages)
	run.Warnings = append(run.Warnings, msg)
	f.warning(msg, map[string]any{"skipped": deferred})
	return run.StartedAt, false
}

type scanResult struct {
	candidates []reconcile.Candidate
	filtered   int
	warnings   []string
	// newest is the latest date among the messages that could be read.
	newest time.Time
}

// classifyAll runs fetch, extract, gate and classify with bounded parallelism.
// Results keep mailbox order; ordering by date happens in the reconcile step.
func (s *SyncService) classifyAll(ctx context.Context, token *oauth2.Token, refs []domain.MessageRef, dir *directory.Directory, f *feed) (*scanResult, error) {
	type slot struct {
		candidate *reconcile.Candidate
		filtered  bool
		warning   string
		date      time.Time
	}
	slots := make([]slot, len(refs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			defer func() { f.progress(int(done.Add(1)), len(refs)) }()

			raw, err := s.deps.Mailbox.GetMessage(gctx, token, ref.ID)
			if errors.Is(err, domain.ErrMessageGone) {
				slots[i].warning = fmt.Sprintf("message %s disappeared before it could be read", ref.ID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("get message %s: %w", ref.ID, err)
			}

			email := s.extractor.Extract(raw)
			slots[i].date = raw.InternalDate
			if len(email.Warnings) > 0 {
				logger.WithField("gmail_id", ref.ID).Warn("[SyncService.classifyAll] extraction: %v", email.Warnings)
			}

			source, ok := s.gate(dir, email, f)
			if !ok {
				slots[i].filtered = true
				return nil
			}

			f.email(fmt.Sprintf("Analyzing: %s", email.Subject), map[string]any{"gmailId": email.GmailID, "from": email.From})
			judgment := s.deps.Classifier.Classify(gctx, email.Subject, email.PlainText, email.From)
			if judgment.Failed {
				f.warning(fmt.Sprintf("Could not analyze: %s", email.Subject), map[string]any{"gmailId": email.GmailID, "reason": judgment.KeyDetails})
			} else {
				f.ai(fmt.Sprintf("%s, %s: %s (%.0f%%)", judgment.Company, judgment.Position, judgment.Status, judgment.Confidence*100), map[string]any{
					"gmailId":          email.GmailID,
					"isJobApplication": judgment.IsJobApplication,
					"confidence":       judgment.Confidence,
				})
			}
			slots[i].candidate = &reconcile.Candidate{Email: email, Judgment: judgment, Source: source}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &scanResult{}
	for _, sl := range slots {
		switch {
		case sl.candidate != nil:
			res.candidates = append(res.candidates, *sl.candidate)
		case sl.filtered:
			res.filtered++
		}
		if sl.warning != "" {
			res.warnings = append(res.warnings, sl.warning)
		}
		if sl.date.After(res.newest) {
			res.newest = sl.date
		}
	}
	return res, nil
}

// gate admits a message by company match or by the pre-filter. A company match
// takes precedence because it carries the lower confidence threshold.
func (s *SyncService) gate(dir *directory.Directory, email *domain.ExtractedEmail, f *feed) (reconcile.MatchSource, bool) {
	if m, ok := dir.Match(email.FromDomain, email.Subject, email.PlainText); ok {
		f.company(fmt.Sprintf("Matched known company %s by %s", m.Company, m.Type), map[string]any{
			"gmailId":    email.GmailID,
			"matchType":  string(m.Type),
			"confidence": m.Confidence,
		})
		return reconcile.SourceCompanyDirectory, true
	}
	if d := s.filter.Evaluate(email.Subject, email.PlainText, email.FromDomain); d.Relevant {
		return reconcile.SourceKeyword, true
	}
	return "", false
}

// windowDays is the fetch window in whole days. It rounds up and adds a day so
// boundary messages from the previous run are scanned again.
func (s *SyncService) windowDays(cp *domain.SyncCheckpoint, now time.Time) int {
	if cp == nil || cp.Timestamp.IsZero() {
		return s.cfg.DefaultLookbackDays
	}
	elapsed := now.Sub(cp.Timestamp)
	if elapsed < 0 {
		elapsed = 0
	}
	return int(math.Ceil(elapsed.Hours()/24)) + 1
}

func (s *SyncService) recordRun(ctx context.Context, run *domain.SyncRun) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.WithError(err).Warn("[SyncService.recordRun] failed to record sync run for %s", run.UserID)
	}
}

func (s *SyncService) RecentRuns(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	if s.deps.Runs == nil {
		return []*domain.SyncRun{}, nil
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return s.deps.Runs.ListRecent(ctx, userID, limit)
}

// ErrorCode maps a sync failure to the machine readable code shown to users.
func ErrorCode(err error) string {
	var sce *domain.StoreCommitError
	switch {
	case err == nil:
		return ""
	case domain.IsAuthorization(err):
		return apperr.CodeGmailAuth
	case errors.Is(err, domain.ErrMailboxNotConnected):
		return apperr.CodeMailboxAbsent
	case errors.Is(err, domain.ErrSyncInProgress):
		return apperr.CodeSyncInProgress
	case errors.As(err, &sce):
		return apperr.CodeStoreCommit
	default:
		return "SYNC_FAILED"
	}
}
