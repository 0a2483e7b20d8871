package email

import "context"

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops every message. It is used when no SMTP host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
