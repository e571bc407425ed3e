// Package classify wraps the language model behind a validated Judgment.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const DefaultCallTimeout = 45 * time.Second

// SystemPrompt makes the model strict about what counts as an application.
const SystemPrompt = `You analyze emails for a job seeker who tracks the applications they have submitted.

Decide whether the email reports on an application the recipient has ALREADY SUBMITTED
(confirmation, review update, assessment, interview scheduling, interview follow-up,
offer, rejection, or withdrawal).

Set "isJobApplication" to false for:
- job postings, job alerts and "jobs you may like" digests
- newsletters, marketing, webinars and product announcements
- recruiter cold outreach about roles the recipient has not applied to
- networking, event invitations and account or security notifications

Respond with a single JSON object and nothing else:
{
  "isJobApplication": true|false,
  "company": "employer name",
  "position": "job title",
  "status": "received|under_review|interview_scheduled|interview_completed|offer|rejected|follow_up_needed|withdrawn|other",
  "sentiment": "positive|negative|neutral",
  "urgency": "high|medium|low",
  "nextAction": "what the recipient should do next",
  "importantDates": ["dates or deadlines mentioned"],
  "confidence": 0.0-1.0,
  "keyDetails": "one or two sentences"
}`

// Classifier is safe for concurrent use when the LLM client is.
type Classifier struct {
	llm          out.LLMClient
	maxBodyBytes int
	callTimeout  time.Duration
}

type Option func(*Classifier)

// WithTokenBudget bounds the body size sent to the model.
func WithTokenBudget(tokens int) Option {
	return func(c *Classifier) {
		if tokens > 0 {
			c.maxBodyBytes = tokens * charsPerToken
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func New(llm out.LLMClient, opts ...Option) *Classifier {
	c := &Classifier{
		llm:          llm,
		maxBodyBytes: DefaultTokenBudget * charsPerToken,
		callTimeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails. Call and parse errors become the safe default judgment
// with Failed set, so one bad message cannot abort a sync.
func (c *Classifier) Classify(ctx context.Context, subject, body, from string) domain.Judgment {
	j, err := c.classify(ctx, subject, body, from)
	if err == nil {
		return j
	}

	var ce *domain.ClassificationError
	keyDetails := domain.KeyDetailsCallFailure
	if errors.As(err, &ce) && ce.Stage == "parse" {
		keyDetails = domain.KeyDetailsParseFailure
	}
	logger.WithError(err).WithField("subject", subject).Warn("[Classifier.Classify] falling back to safe default")
	return domain.SafeDefaultJudgment(keyDetails)
}

func (c *Classifier) classify(ctx context.Context, subject, body, from string) (domain.Judgment, error) {
	if c.llm == nil {
		return domain.Judgment{}, &domain.ClassificationError{Stage: "call", Err: errors.New("no language model configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	raw, err := c.llm.CompleteWithSystem(callCtx, SystemPrompt, BuildUserPrompt(subject, from, TruncateAtSentence(body, c.maxBodyBytes)))
	if err != nil {
		return domain.Judgment{}, &domain.ClassificationError{Stage: "call", Err: err}
	}

	j, err := ParseJudgment(raw)
	if err != nil {
		return domain.Judgment{}, &domain.ClassificationError{Stage: "parse", Err: err}
	}
	return j, nil
}

func BuildUserPrompt(subject, from, body string) string {
	return fmt.Sprintf("Subject: %s\nFrom: %s\n\nBody:\n%s", subject, from, body)
}
