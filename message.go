// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"github.com/oklog/ulid/v2"
)

// EmailType classifies a message as marketing or transactional mail.
type EmailType int

const (
	// EmailTypeMarketing marks bulk marketing mail. Marketing mail carries unsubscribe headers.
	EmailTypeMarketing EmailType = iota

	// EmailTypeTransactional marks mail triggered by an action of the recipient.
	EmailTypeTransactional
)

// String satisfies the fmt.Stringer interface for the EmailType type.
func (t EmailType) String() string {
	switch t {
	case EmailTypeMarketing:
		return "marketing"
	case EmailTypeTransactional:
		return "transactional"
	default:
		return "unknown"
	}
}

// OutboundMessage is a single logical send request. A Session keeps its own copy of the message,
// so changes to the OutboundMessage after SetMessage have no effect on queued recipients.
type OutboundMessage struct {
	Subject string
	HTML    string
	Text    string

	// Headers are the message specific custom headers
	Headers *Headers

	// ReplyTo overrides the Reply-To address
	ReplyTo string

	// FromAddress and FromName override the global default sender
	FromAddress string
	FromName    string

	// UseOwnerAsSender sends the message as the owner of each recipient
	UseOwnerAsSender bool

	EmailType EmailType

	// Tokens holds message wide placeholder values. Recipient tokens take precedence.
	Tokens Tokens
}

// Clone returns a deep copy of the message.
func (m *OutboundMessage) Clone() *OutboundMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.Headers = m.Headers.Clone()
	c.Tokens = m.Tokens.Clone()
	return &c
}

// Recipient is a contact queued for an OutboundMessage.
type Recipient struct {
	Address string
	Name    string

	// OwnerID references the owner of the contact, empty if the contact has no owner
	OwnerID string

	// IDHash identifies the contact for the unsubscribe URL
	IDHash string

	// Tokens holds the custom field values of the contact
	Tokens Tokens
}

// RecipientData is a recipient of a PhysicalMessage together with the complete set of tokens
// for its personalization and arbitrary metadata for correlating provider responses.
type RecipientData struct {
	Address  string
	Name     string
	Tokens   Tokens
	Metadata map[string]string
}

// PhysicalMessage is one submission to the Transport. All recipients share the same sender
// identity. Subject, bodies and headers are templates in which the tokens shared by all
// recipients are already substituted; the remaining placeholders are resolved per recipient
// with Personalize or by the delivery provider itself.
type PhysicalMessage struct {
	// ID is a unique ULID of the physical message
	ID string

	// Group is the index of the message group within its flush
	Group int

	Identity   Identity
	Recipients []RecipientData

	Subject string
	HTML    string
	Text    string
	Headers *Headers
}

// Personalized is a fully substituted single recipient rendition of a PhysicalMessage.
type Personalized struct {
	Identity Identity
	To       RecipientData
	Subject  string
	HTML     string
	Text     string
	Headers  *Headers
}

// newMessageID returns a new unique ID for a PhysicalMessage
func newMessageID() string {
	return ulid.Make().String()
}

// Addresses returns the recipient addresses of the message in order.
func (p *PhysicalMessage) Addresses() []string {
	addrs := make([]string, len(p.Recipients))
	for i, r := range p.Recipients {
		addrs[i] = r.Address
	}
	return addrs
}

// Personalize returns the rendition of the message for the i-th recipient. If the recipient has
// no unsubscribe URL, the unsubscribe headers are removed.
//
// Parameters:
//   - i: The index of the recipient in Recipients.
//
// Returns:
//   - The Personalized message.
func (p *PhysicalMessage) Personalize(i int) Personalized {
	rcpt := p.Recipients[i]
	headers := NewHeaders()
	for _, f := range p.Headers.Fields() {
		headers.Set(f.Name, Substitute(f.Value, rcpt.Tokens))
	}
	if headers.Get(HeaderListUnsubscribe.String()) == "<>" {
		headers.Del(HeaderListUnsubscribe.String())
		headers.Del(HeaderListUnsubscribePost.String())
	}
	return Personalized{
		Identity: p.Identity,
		To:       rcpt,
		Subject:  Substitute(p.Subject, rcpt.Tokens),
		HTML:     Substitute(p.HTML, rcpt.Tokens),
		Text:     Substitute(p.Text, rcpt.Tokens),
		Headers:  headers,
	}
}
