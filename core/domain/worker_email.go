package domain

import "time"

// MessageHeader is a single raw header as returned by the mailbox.
type MessageHeader struct {
	Name  string
	Value string
}

// MessagePart is a node of a MIME payload tree. Data is base64url encoded.
type MessagePart struct {
	MimeType string
	Filename string
	Headers  []MessageHeader
	Data     string
	Parts    []MessagePart
}

// RawMessage is a full message as delivered by the mailbox source.
type RawMessage struct {
	ID           string
	ThreadID     string
	InternalDate time.Time
	Snippet      string
	Payload      MessagePart
}

// MessageRef identifies a message in a listing before its payload is fetched.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MailboxQuery selects the fetch window. A non-zero After narrows it to
// messages received strictly later.
type MailboxQuery struct {
	NewerThanDays int
	After         time.Time
	MaxResults    int
}

// ExtractedEmail is the normalized view of a message used by the pipeline.
type ExtractedEmail struct {
	GmailID         string
	ThreadID        string
	Subject         string
	From            string
	FromAddress     string
	FromDomain      string
	Date            time.Time
	PlainText       string
	HTMLContent     string
	OriginalContent string
	Preview         string
	Warnings        []string
}
