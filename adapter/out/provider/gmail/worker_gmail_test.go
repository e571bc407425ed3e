package gmail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

func newStub(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(option.WithEndpoint(srv.URL + "/"))
}

var token = &oauth2.Token{AccessToken: "t", TokenType: "Bearer"}

func TestListMessagesPaginatesWithWindowQuery(t *testing.T) {
	var queries []string
	p := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"a","threadId":"ta"},{"id":"b","threadId":"tb"}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"c","threadId":"tc"}]}`))
	})

	refs, err := p.ListMessages(context.Background(), token, domain.MailboxQuery{NewerThanDays: 3, MaxResults: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 || refs[2].ID != "c" {
		t.Fatalf("refs = %+v", refs)
	}
	if len(queries) != 2 || queries[0] != "newer_than:3d" {
		t.Fatalf("queries = %v", queries)
	}
}

func TestListMessagesAddsExclusiveAfterBound(t *testing.T) {
	var query string
	p := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})

	after := time.Unix(1709546400, 0)
	if _, err := p.ListMessages(context.Background(), token, domain.MailboxQuery{NewerThanDays: 2, After: after}); err != nil {
		t.Fatal(err)
	}
	if query != "newer_than:2d after:1709546401" {
		t.Fatalf("query = %q", query)
	}
}

func TestListMessagesStopsAtMaxResults(t *testing.T) {
	calls := 0
	p := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("maxResults"); got != "2" {
			t.Errorf("maxResults = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"a"},{"id":"b"}],"nextPageToken":"more"}`))
	})

	refs, err := p.ListMessages(context.Background(), token, domain.MailboxQuery{NewerThanDays: 50, MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || calls != 1 {
		t.Fatalf("refs=%d calls=%d", len(refs), calls)
	}
}

func TestGetMessageConvertsPayload(t *testing.T) {
	p := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages/m1") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","threadId":"t1","internalDate":"1709546400000","snippet":"hi",
			"payload":{"mimeType":"multipart/alternative","headers":[{"name":"Subject","value":"Hello"}],
			"parts":[{"mimeType":"text/plain","body":{"data":"aGk"}},{"mimeType":"application/pdf","filename":"cv.pdf","body":{}}]}}`))
	})

	msg, err := p.GetMessage(context.Background(), token, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if msg.InternalDate.UnixMilli() != 1709546400000 {
		t.Errorf("internal date = %v", msg.InternalDate)
	}
	if len(msg.Payload.Parts) != 2 || msg.Payload.Parts[0].Data != "aGk" || msg.Payload.Parts[1].Filename != "cv.pdf" {
		t.Errorf("payload = %+v", msg.Payload)
	}
	if msg.Payload.Headers[0].Value != "Hello" {
		t.Errorf("headers = %+v", msg.Payload.Headers)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"not found", 404, `{"error":{"code":404,"message":"Requested entity was not found."}}`,
			func(err error) bool { return errors.Is(err, domain.ErrMessageGone) }},
		{"unauthorized", 401, `{"error":{"code":401,"message":"Invalid Credentials"}}`,
			domain.IsAuthorization},
		{"scopes", 403, `{"error":{"code":403,"message":"Request had insufficient authentication scopes."}}`,
			func(err error) bool {
				var ae *domain.AuthorizationError
				return errors.As(err, &ae) && ae.Reason == "insufficient authentication scopes"
			}},
		{"rate limit", 403, `{"error":{"code":403,"message":"User Rate Limit Exceeded","errors":[{"reason":"userRateLimitExceeded"}]}}`,
			func(err error) bool { return err != nil && !domain.IsAuthorization(err) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newStub(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.GetMessage(context.Background(), token, "x")
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
