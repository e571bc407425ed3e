package extract

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

func enc(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func TestExtractMultipartPrefersPlainText(t *testing.T) {
	msg := &domain.RawMessage{
		ID: "m1",
		Payload: domain.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []domain.MessageHeader{
				{Name: "Subject", Value: "Application received"},
				{Name: "From", Value: "Acme Careers <no-reply@careers.acme.com>"},
				{Name: "Date", Value: "Tue, 05 Mar 2024 10:00:00 +0000"},
			},
			Parts: []domain.MessagePart{
				{MimeType: "text/plain", Data: enc("Thanks for applying to Acme.")},
				{MimeType: "text/html", Data: enc("<p>Thanks for applying to <b>Acme</b>.</p>")},
				{MimeType: "application/pdf", Filename: "offer.pdf", Data: enc("%PDF")},
			},
		},
	}

	got := New().Extract(msg)

	if got.Subject != "Application received" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.FromAddress != "no-reply@careers.acme.com" || got.FromDomain != "careers.acme.com" {
		t.Errorf("FromAddress=%q FromDomain=%q", got.FromAddress, got.FromDomain)
	}
	if want := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC); !got.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", got.Date, want)
	}
	if got.PlainText != "Thanks for applying to Acme." {
		t.Errorf("PlainText = %q", got.PlainText)
	}
	if got.OriginalContent != got.PlainText {
		t.Errorf("OriginalContent should be the plain body, got %q", got.OriginalContent)
	}
	if !strings.Contains(got.HTMLContent, "<b>Acme</b>") {
		t.Errorf("HTMLContent = %q", got.HTMLContent)
	}
}

func TestExtractHTMLOnlyIsReadable(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body>
<p>Hi&nbsp;Jane,</p><p>Your interview is on <b>Tuesday</b> &amp; we&#39;re excited.</p>
<script>track()</script></body></html>`
	msg := &domain.RawMessage{
		ID:      "m2",
		Payload: domain.MessagePart{MimeType: "text/html", Data: enc(html)},
	}

	got := New().Extract(msg)

	if strings.Contains(got.PlainText, "<") || strings.Contains(got.PlainText, "track()") || strings.Contains(got.PlainText, "color:red") {
		t.Errorf("markup leaked into PlainText: %q", got.PlainText)
	}
	if !strings.Contains(got.PlainText, "Hi Jane,") {
		t.Errorf("entity not decoded: %q", got.PlainText)
	}
	if !strings.Contains(got.PlainText, "Your interview is on Tuesday & we're excited.") {
		t.Errorf("PlainText = %q", got.PlainText)
	}
	if got.OriginalContent != got.HTMLContent {
		t.Error("OriginalContent should fall back to the HTML body")
	}
}

func TestExtractMissingHeadersDegrade(t *testing.T) {
	internal := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &domain.RawMessage{
		ID:           "m3",
		InternalDate: internal,
		Payload:      domain.MessagePart{MimeType: "text/plain", Data: enc("body")},
	}

	got := New().Extract(msg)

	if got.Subject != "" || got.From != "" || got.FromDomain != "" {
		t.Errorf("missing headers should be empty: %+v", got)
	}
	if !got.Date.Equal(internal) {
		t.Errorf("Date should fall back to internal date, got %v", got.Date)
	}
}

func TestExtractEncodedSubjectAndBadBody(t *testing.T) {
	msg := &domain.RawMessage{
		ID:      "m4",
		Snippet: "fallback snippet",
		Payload: domain.MessagePart{
			MimeType: "text/plain",
			Headers: []domain.MessageHeader{
				{Name: "Subject", Value: "=?UTF-8?B?SW50ZXJ2aWV3IHNjaGVkdWxlZA==?="},
				{Name: "From", Value: "not an address"},
			},
			Data: "%%%not-base64%%%",
		},
	}

	got := New().Extract(msg)

	if got.Subject != "Interview scheduled" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.From != "not an address" || got.FromAddress != "" {
		t.Errorf("From=%q FromAddress=%q", got.From, got.FromAddress)
	}
	if len(got.Warnings) == 0 {
		t.Error("undecodable body should produce a warning")
	}
	if got.PlainText != "fallback snippet" {
		t.Errorf("PlainText = %q", got.PlainText)
	}
}

func TestDecodeBodyWithoutPadding(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("hello?"))
	got, err := DecodeBody(raw)
	if err != nil || got != "hello?" {
		t.Errorf("DecodeBody = %q, %v", got, err)
	}
}

func TestSenderDomain(t *testing.T) {
	if got := SenderDomain("Recruiting <Jobs@Wells-Fargo.com>"); got != "wells-fargo.com" {
		t.Errorf("SenderDomain = %q", got)
	}
	if got := SenderDomain(""); got != "" {
		t.Errorf("SenderDomain(\"\") = %q", got)
	}
}
