package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

type fakeLLM struct {
	reply    string
	err      error
	lastUser string
	lastSys  string
}

func (f *fakeLLM) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	f.lastSys, f.lastUser = system, user
	return f.reply, f.err
}

func TestClassifyReturnsParsedJudgment(t *testing.T) {
	llm := &fakeLLM{reply: "```json\n{\"isJobApplication\": true, \"company\": \"Acme\", \"position\": \"Engineer\", \"status\": \"interview_scheduled\", \"sentiment\": \"positive\", \"urgency\": \"high\", \"confidence\": 0.85}\n```"}
	c := New(llm)

	j := c.Classify(context.Background(), "Interview", "Let's talk Tuesday.", "jane@acme.com")

	assert.True(t, j.IsJobApplication)
	assert.Equal(t, "Acme", j.Company)
	assert.Equal(t, domain.StatusInterviewScheduled, j.Status)
	assert.InDelta(t, 0.85, j.Confidence, 1e-9)
	assert.False(t, j.Failed)
	assert.Contains(t, llm.lastSys, "job postings")
	assert.Contains(t, llm.lastUser, "Subject: Interview")
	assert.Contains(t, llm.lastUser, "From: jane@acme.com")
}

func TestClassifyNetworkErrorYieldsSafeDefault(t *testing.T) {
	c := New(&fakeLLM{err: errors.New("connection reset")})

	j := c.Classify(context.Background(), "s", "b", "f")

	assert.Equal(t, domain.SafeDefaultJudgment(domain.KeyDetailsCallFailure), j)
}

func TestClassifyUnparseableYieldsSafeDefault(t *testing.T) {
	c := New(&fakeLLM{reply: "As an AI model I can't do that"})

	j := c.Classify(context.Background(), "s", "b", "f")

	assert.False(t, j.IsJobApplication)
	assert.True(t, j.Failed)
	assert.Zero(t, j.Confidence)
	assert.Equal(t, domain.KeyDetailsParseFailure, j.KeyDetails)
	assert.Equal(t, domain.DefaultNextAction, j.NextAction)
}

func TestClassifyWithoutModel(t *testing.T) {
	j := New(nil).Classify(context.Background(), "s", "b", "f")
	assert.True(t, j.Failed)
	assert.Equal(t, domain.KeyDetailsCallFailure, j.KeyDetails)
}

func TestClassifyTruncatesBody(t *testing.T) {
	llm := &fakeLLM{reply: `{"isJobApplication": false}`}
	c := New(llm, WithTokenBudget(10))

	c.Classify(context.Background(), "s", strings.Repeat("Word soup here. ", 50), "f")

	body := llm.lastUser[strings.Index(llm.lastUser, "Body:\n")+len("Body:\n"):]
	assert.LessOrEqual(t, len(body), 40)
	assert.True(t, strings.HasSuffix(body, "."))
}
