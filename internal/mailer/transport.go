package mailer

import "context"

// Email is one fully-rendered outbound message.
type Email struct {
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	HTML      string            `json:"html"`
	FromEmail string            `json:"from_email"`
	FromName  string            `json:"from_name,omitempty"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	// Headers are echoed back by the provider on webhook events; the
	// reconciler uses them to find the campaign contact.
	Headers map[string]string `json:"headers,omitempty"`
}

// Transport is the narrow contract the delivery core depends on. A send
// returns the provider's message id; an empty id is treated as a failure by
// the caller.
type Transport interface {
	Name() string
	Ready() bool
	Acquire() bool
	Send(ctx context.Context, email Email) (string, error)
}
