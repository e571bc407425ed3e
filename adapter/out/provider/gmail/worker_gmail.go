// Package gmail reads messages through the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const (
	providerName = "gmail"
	// maxPageSize is the largest page the list endpoint accepts.
	maxPageSize = 500
)

// Provider implements out.MailboxSource. All calls share one circuit breaker.
type Provider struct {
	cb   *gobreaker.CircuitBreaker
	opts []option.ClientOption
}

// NewProvider accepts extra client options, e.g. an endpoint override.
func NewProvider(opts ...option.ClientOption) *Provider {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Client errors say nothing about the API's health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *googleapi.Error
			return errors.As(err, &apiErr) && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}
	return &Provider{cb: gobreaker.NewCircuitBreaker(settings), opts: opts}
}

var _ out.MailboxSource = (*Provider)(nil)

func (p *Provider) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, p.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// ListMessages pages through messages newer than the window, up to MaxResults.
func (p *Provider) ListMessages(ctx context.Context, token *oauth2.Token, query domain.MailboxQuery) ([]domain.MessageRef, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("newer_than:%dd", query.NewerThanDays)
	if !query.After.IsZero() {
		// after: has second granularity and is inclusive
		q += fmt.Sprintf(" after:%d", query.After.Unix()+1)
	}
	limit := query.MaxResults
	var refs []domain.MessageRef
	pageToken := ""

	for {
		pageSize := maxPageSize
		if limit > 0 && limit-len(refs) < pageSize {
			pageSize = limit - len(refs)
		}
		req := svc.Users.Messages.List("me").Q(q).MaxResults(int64(pageSize))
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := p.cb.Execute(func() (interface{}, error) {
			return req.Context(ctx).Do()
		})
		if err != nil {
			return nil, mapError(err, "failed to list messages")
		}
		resp := res.(*gmail.ListMessagesResponse)
		for _, m := range resp.Messages {
			refs = append(refs, domain.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || (limit > 0 && len(refs) >= limit) {
			break
		}
	}

	logger.Debug("[GmailProvider.ListMessages] %s returned %d messages", q, len(refs))
	return refs, nil
}

func (p *Provider) GetMessage(ctx context.Context, token *oauth2.Token, id string) (*domain.RawMessage, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}

	res, err := p.cb.Execute(func() (interface{}, error) {
		return svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	})
	if err != nil {
		return nil, mapError(err, "failed to get message "+id)
	}
	return toRawMessage(res.(*gmail.Message)), nil
}

func toRawMessage(msg *gmail.Message) *domain.RawMessage {
	raw := &domain.RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.InternalDate > 0 {
		raw.InternalDate = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload != nil {
		raw.Payload = toPart(msg.Payload)
	}
	return raw
}

func toPart(p *gmail.MessagePart) domain.MessagePart {
	part := domain.MessagePart{MimeType: p.MimeType, Filename: p.Filename}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, domain.MessageHeader{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, toPart(child))
		}
	}
	return part
}

// mapError turns API failures into the domain errors the sync reacts to.
func mapError(err error, msg string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return &domain.AuthorizationError{Provider: providerName, Reason: "access token rejected", Err: err}
		case http.StatusForbidden:
			if isRateLimited(apiErr) {
				return fmt.Errorf("%s: rate limited: %w", msg, err)
			}
			reason := "access denied"
			if strings.Contains(strings.ToLower(apiErr.Message), "insufficient authentication scopes") {
				reason = "insufficient authentication scopes"
			}
			return &domain.AuthorizationError{Provider: providerName, Reason: reason, Err: err}
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", msg, domain.ErrMessageGone)
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &domain.AuthorizationError{Provider: providerName, Reason: "token refresh failed", Err: err}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isRateLimited(apiErr *googleapi.Error) bool {
	if strings.Contains(apiErr.Message, "Rate Limit") {
		return true
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
