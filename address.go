// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/wneessen/go-mail-dispatch/log"
)

var (
	// ErrInvalidEmailFormat is returned if an address fails ValidateEmail.
	ErrInvalidEmailFormat = errors.New("invalid email address format")

	// ErrOwnerNotFound should be returned by an OwnerLookup if no owner exists for the given ID.
	ErrOwnerNotFound = errors.New("owner not found")
)

// disallowedAddressChars lists characters that are rejected even though RFC 5321 would permit
// some of them in the local part.
const disallowedAddressChars = " ^';&*%"

// ValidateEmail checks the given address against the product address policy. Apart from being
// a plain, parseable address it must not contain any of the characters space, ^, ', ;, &, *
// or % and its domain must consist of at least two labels, which is stricter than RFC 5321.
//
// Parameters:
//   - address: The address to validate, without display name.
//
// Returns:
//   - An error wrapping ErrInvalidEmailFormat if the address is not acceptable, nil otherwise.
func ValidateEmail(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidEmailFormat)
	}
	if strings.ContainsAny(address, disallowedAddressChars) {
		return fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidEmailFormat, address)
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmailFormat, err)
	}
	if parsed.Address != address {
		return fmt.Errorf("%w: %q is not a plain address", ErrInvalidEmailFormat, address)
	}
	at := strings.LastIndex(address, "@")
	domain := address[at+1:]
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("%w: domain %q has no top level domain", ErrInvalidEmailFormat, domain)
	}
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("%w: domain %q has an empty label", ErrInvalidEmailFormat, domain)
		}
	}
	return nil
}

// Owner is the user record a contact is assigned to.
type Owner struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Signature string
}

// Name returns the display name of the owner, with HTML character references decoded.
func (o *Owner) Name() string {
	if o == nil {
		return ""
	}
	return html.UnescapeString(strings.TrimSpace(o.FirstName + " " + o.LastName))
}

// OwnerLookup fetches owner records. Implementations must be safe for concurrent use and
// return an error wrapping ErrOwnerNotFound if the owner does not exist.
type OwnerLookup interface {
	Owner(ctx context.Context, id string) (*Owner, error)
}

// OwnerLookupFunc is an adapter to use ordinary functions as OwnerLookup.
type OwnerLookupFunc func(ctx context.Context, id string) (*Owner, error)

// Owner calls f(ctx, id).
func (f OwnerLookupFunc) Owner(ctx context.Context, id string) (*Owner, error) {
	return f(ctx, id)
}

// Sender is an address and display name pair.
type Sender struct {
	Address string
	Name    string
}

// Identity is the resolved sender identity of a recipient. Two recipients end up in the same
// physical message only if their identities are equal.
type Identity struct {
	FromAddress string
	FromName    string
	ReplyTo     string
	Signature   string
}

// AddressResolver decides the sender identity for a recipient.
//
// Owner records are cached for the lifetime of a dispatch cycle, until ResetCache is called.
// An AddressResolver is not safe for concurrent use.
type AddressResolver struct {
	config   Config
	lookup   OwnerLookup
	logger   log.Logger
	override Sender
	owners   map[string]*Owner
}

// NewAddressResolver returns a new AddressResolver. The OwnerLookup may be nil, in which case
// the owner-as-sender policy never applies.
func NewAddressResolver(c Config, l OwnerLookup, logger log.Logger) *AddressResolver {
	return &AddressResolver{
		config: c,
		lookup: l,
		logger: logger,
		owners: make(map[string]*Owner),
	}
}

// SetOverride sets a sender that takes precedence over every other rule. An empty address
// removes the override.
func (r *AddressResolver) SetOverride(s Sender) {
	r.override = s
}

// ResetCache drops all cached owner records.
func (r *AddressResolver) ResetCache() {
	r.owners = make(map[string]*Owner)
}

// Resolve returns the Identity for the given recipient of the message.
//
// The From address is taken from, in order: the override set with SetOverride, the recipient's
// owner if the message uses the owner as sender and the owner exists, the message's own From
// address, and finally the KeyFromEmail configuration. A failing owner lookup falls through to
// the next rule. The Reply-To address is taken from the message's ReplyTo, the message's From
// address, the KeyReplyToEmail configuration and the KeyFromEmail configuration, in that order.
//
// The returned Identity has an empty FromAddress if no rule yields an address.
//
// Parameters:
//   - ctx: The context used for the owner lookup.
//   - m: The OutboundMessage being sent.
//   - rcpt: The Recipient to resolve the identity for.
//
// Returns:
//   - The resolved Identity.
func (r *AddressResolver) Resolve(ctx context.Context, m *OutboundMessage, rcpt Recipient) Identity {
	if m == nil {
		m = &OutboundMessage{}
	}
	defaultAddr := r.config.String(KeyFromEmail, "")
	defaultName := html.UnescapeString(r.config.String(KeyFromName, ""))

	id := Identity{ReplyTo: r.replyTo(m, defaultAddr)}
	var owner *Owner
	switch {
	case r.override.Address != "":
		id.FromAddress = r.override.Address
		id.FromName = firstNonEmpty(html.UnescapeString(r.override.Name), defaultName)
	case m.UseOwnerAsSender && rcpt.OwnerID != "":
		owner = r.owner(ctx, rcpt.OwnerID)
		if owner != nil && owner.Email != "" {
			id.FromAddress = owner.Email
			id.FromName = owner.Name()
			id.Signature = owner.Signature
			return id
		}
		fallthrough
	default:
		id.FromAddress = firstNonEmpty(m.FromAddress, defaultAddr)
		id.FromName = firstNonEmpty(html.UnescapeString(m.FromName), defaultName)
	}
	id.Signature = strings.ReplaceAll(r.config.String(KeyDefaultSignature, ""), "|FROM_NAME|", id.FromName)
	return id
}

// replyTo applies the Reply-To precedence rules
func (r *AddressResolver) replyTo(m *OutboundMessage, defaultAddr string) string {
	return firstNonEmpty(m.ReplyTo, m.FromAddress, r.config.String(KeyReplyToEmail, ""), defaultAddr)
}

// owner returns the owner with the given ID from the cache or the OwnerLookup. It returns nil
// if no owner is found or the lookup fails.
func (r *AddressResolver) owner(ctx context.Context, id string) *Owner {
	if r.lookup == nil {
		return nil
	}
	if o, ok := r.owners[id]; ok {
		return o
	}
	o, err := r.lookup.Owner(ctx, id)
	switch {
	case errors.Is(err, ErrOwnerNotFound):
		r.owners[id] = nil
		return nil
	case err != nil:
		r.logger.Warnf(log.Log{Component: log.CompResolver, Format: "owner lookup for %q failed, using default sender: %s",
			Messages: []interface{}{id, err}})
		return nil
	}
	r.owners[id] = o
	return o
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
