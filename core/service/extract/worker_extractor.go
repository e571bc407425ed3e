// Package extract turns raw mailbox payloads into the text the pipeline reads.
package extract

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

const DefaultPreviewLength = 200

var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	inlineSpacing = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// Extractor normalizes raw messages. It is stateless and safe for concurrent use.
type Extractor struct {
	previewLength int
}

func New() *Extractor {
	return &Extractor{previewLength: DefaultPreviewLength}
}

// Extract never fails: malformed parts are skipped and recorded as warnings.
func (e *Extractor) Extract(msg *domain.RawMessage) *domain.ExtractedEmail {
	out := &domain.ExtractedEmail{GmailID: msg.ID, ThreadID: msg.ThreadID}

	var h mail.Header
	for _, hdr := range msg.Payload.Headers {
		h.Add(hdr.Name, hdr.Value)
	}

	out.Subject = h.Get("Subject")
	if decoded, err := h.Subject(); err == nil {
		out.Subject = decoded
	}
	out.Subject = strings.TrimSpace(out.Subject)

	out.From = strings.TrimSpace(h.Get("From"))
	out.FromAddress = senderAddress(&h, out.From)
	if at := strings.LastIndex(out.FromAddress, "@"); at >= 0 {
		out.FromDomain = out.FromAddress[at+1:]
	}

	out.Date = msg.InternalDate
	if h.Get("Date") != "" {
		if d, err := h.Date(); err == nil && !d.IsZero() {
			out.Date = d
		} else if err != nil {
			out.Warnings = append(out.Warnings, (&domain.ExtractionError{MessageID: msg.ID, Part: "Date", Err: err}).Error())
		}
	}
	out.Date = out.Date.UTC()

	var plain, html []string
	e.walk(msg.ID, &msg.Payload, &plain, &html, &out.Warnings)

	plainText := strings.TrimSpace(strings.Join(plain, "\n"))
	out.HTMLContent = strings.TrimSpace(strings.Join(html, "\n"))

	switch {
	case plainText != "":
		out.OriginalContent = plainText
		out.PlainText = CleanText(plainText)
	case out.HTMLContent != "":
		out.OriginalContent = out.HTMLContent
		text, err := HTMLToText(out.HTMLContent)
		if err != nil {
			out.Warnings = append(out.Warnings, (&domain.ExtractionError{MessageID: msg.ID, Part: "text/html", Err: err}).Error())
		}
		out.PlainText = text
	default:
		out.PlainText = CleanText(msg.Snippet)
		out.OriginalContent = out.PlainText
	}

	out.Preview = domain.Preview(out.PlainText, e.previewLength)
	return out
}

func (e *Extractor) walk(msgID string, part *domain.MessagePart, plain, html, warnings *[]string) {
	if part.Filename != "" {
		return
	}
	mimeType := strings.ToLower(part.MimeType)
	if part.Data != "" && (mimeType == "text/plain" || mimeType == "text/html") {
		body, err := DecodeBody(part.Data)
		if err != nil {
			*warnings = append(*warnings, (&domain.ExtractionError{MessageID: msgID, Part: mimeType, Err: err}).Error())
		} else if mimeType == "text/plain" {
			*plain = append(*plain, body)
		} else {
			*html = append(*html, body)
		}
	}
	for i := range part.Parts {
		e.walk(msgID, &part.Parts[i], plain, html, warnings)
	}
}

// DecodeBody decodes a mailbox body payload, tolerating missing padding.
func DecodeBody(data string) (string, error) {
	data = strings.TrimSpace(data)
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(data)
		if err == nil {
			return string(b), nil
		}
		lastErr = err
	}
	return "", errors.Join(errors.New("body is not base64"), lastErr)
}

// HTMLToText strips markup, keeps block boundaries as line breaks and decodes entities.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return CleanText(html), err
	}
	doc.Find("script, style, head, noscript, title").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, table, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return CleanText(doc.Text()), nil
}

// CleanText collapses inline whitespace and runs of blank lines.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpacing.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func senderAddress(h *mail.Header, raw string) string {
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		return strings.ToLower(addrs[0].Address)
	}
	return strings.ToLower(emailPattern.FindString(raw))
}

// SenderDomain returns the lowercased domain of the first address in a From value.
func SenderDomain(from string) string {
	addr := strings.ToLower(emailPattern.FindString(from))
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		return addr[at+1:]
	}
	return ""
}
