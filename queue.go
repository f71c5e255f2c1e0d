// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wneessen/go-mail-dispatch/log"
)

var (
	// ErrBatchLimitExceeded is returned if a queued recipient would exceed the number of distinct
	// sender identities allowed per queue cycle. The queue must be flushed or reset.
	ErrBatchLimitExceeded = errors.New("distinct sender identity limit exceeded")

	// ErrMissingDefaultSender is returned if no From address could be resolved for a recipient.
	ErrMissingDefaultSender = errors.New("no sender address configured")

	// ErrInvalidState is returned if an operation is not valid in the current State.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNoRecipient is returned by Queue if no recipient was set.
	ErrNoRecipient = errors.New("no recipient set")

	// ErrAllGroupsFailed is returned by FlushQueue if the delivery of every physical message failed.
	ErrAllGroupsFailed = errors.New("delivery of all messages failed")

	// ErrNoTransport is returned by NewSession if the Transport is nil.
	ErrNoTransport = errors.New("no transport given")
)

// State is the state of a Session.
type State int

const (
	// StateIdle means no message is set
	StateIdle State = iota

	// StateComposing means a message is set and recipients are sent immediately
	StateComposing

	// StateQueuing means recipients are collected into groups until FlushQueue is called
	StateQueuing

	// StateFlushed means all queued groups were handed to the Transport
	StateFlushed
)

// String satisfies the fmt.Stringer interface for the State type.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateComposing:
		return "COMPOSING"
	case StateQueuing:
		return "QUEUING"
	case StateFlushed:
		return "FLUSHED"
	default:
		return "UNKNOWN"
	}
}

// group is an open physical message. msg is the snapshot of the message taken by SetMessage,
// which is never mutated afterwards.
type group struct {
	identity   Identity
	msg        *OutboundMessage
	recipients []Recipient
	tokens     []Tokens
}

// Session turns one logical message into physical messages grouped by sender identity and
// hands them to a Transport.
//
// A Session is a sequential builder and not safe for concurrent use. Independent Sessions may
// run in parallel, provided the Config and OwnerLookup are safe for concurrent reads.
type Session struct {
	transport Transport
	config    Config
	logger    log.Logger
	lookup    OwnerLookup
	urls      URLBuilder
	grouping  Grouping
	pixel     string

	resolver *AddressResolver
	headers  *HeaderComposer
	body     *BodyComposer

	identityLimit int
	groupSize     int

	state      State
	msg        *OutboundMessage
	current    *Recipient
	groups     []*group
	identities map[Identity]struct{}
	ledger     ErrorLedger
}

// NewSession returns a new Session in StateIdle that delivers through the given Transport.
//
// The per-group size cap is read from KeyGroupSize. If it is not set, the BatchLimit of a
// BatchTransport is used, or DefaultGroupSize for any other Transport. The distinct identity
// cap is read from KeyIdentityLimit and defaults to DefaultIdentityLimit, which is also used
// for values that are not positive.
//
// Parameters:
//   - t: The Transport for the physical messages.
//   - c: The Config of the dispatch components.
//   - opts: Optional parameters for customizing the Session.
//
// Returns:
//   - A pointer to the Session.
//   - An error if the Transport is nil or any of the options fails.
func NewSession(t Transport, c Config, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	if c == nil {
		c = StaticConfig{}
	}
	s := &Session{
		transport:  t,
		config:     c,
		logger:     log.New(os.Stderr, log.LevelWarn),
		pixel:      BlankPixel,
		identities: make(map[Identity]struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply session option: %w", err)
		}
	}

	s.resolver = NewAddressResolver(c, s.lookup, s.logger)
	s.headers = NewHeaderComposer(c)
	s.body = NewBodyComposer(c, s.logger)

	s.identityLimit = c.Int(KeyIdentityLimit, DefaultIdentityLimit)
	if s.identityLimit <= 0 {
		s.identityLimit = DefaultIdentityLimit
	}
	s.groupSize = c.Int(KeyGroupSize, 0)
	if s.groupSize <= 0 {
		s.groupSize = DefaultGroupSize
		if bt, ok := t.(BatchTransport); ok {
			s.groupSize = bt.BatchLimit()
		}
	}
	return s, nil
}

// State returns the current State of the Session.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.logger.Debugf(log.Log{Component: log.CompQueue, Format: "state transition %s -> %s",
		Messages: []interface{}{s.state, st}})
	s.state = st
}

// SetMessage sets the message to dispatch and moves the Session to StateComposing. Queued
// recipients of a previous message are discarded. The Session keeps a copy of the message.
func (s *Session) SetMessage(m *OutboundMessage) error {
	if m == nil {
		return errors.New("message must not be nil")
	}
	if len(s.groups) > 0 {
		s.logger.Warnf(log.Log{Component: log.CompQueue, Format: "discarding %d unsent message group(s)",
			Messages: []interface{}{len(s.groups)}})
	}
	s.msg = m.Clone()
	s.clearQueue()
	s.setState(StateComposing)
	return nil
}

// SetFrom sets a sender that overrides every other sender rule for all following recipients.
// An empty address removes the override.
func (s *Session) SetFrom(address, name string) error {
	if address != "" {
		if err := ValidateEmail(address); err != nil {
			return err
		}
	}
	s.resolver.SetOverride(Sender{Address: address, Name: name})
	return nil
}

// EnableQueue moves the Session to StateQueuing. It is a no-op if the Session is already
// queuing.
func (s *Session) EnableQueue() error {
	switch s.state {
	case StateQueuing:
		return nil
	case StateComposing, StateFlushed:
		s.setState(StateQueuing)
		return nil
	default:
		return fmt.Errorf("%w: cannot enable queue in state %s", ErrInvalidState, s.state)
	}
}

// AddRecipient adds a recipient for the current message.
//
// In StateComposing the message is sent to the recipient immediately and a delivery failure is
// returned and recorded in the error ledger. In StateQueuing the recipient is added to the group
// of its sender identity, or to a new group if there is none or it is full.
//
// An invalid address leaves the Session unchanged.
//
// Parameters:
//   - ctx: The context for the owner lookup and an immediate delivery.
//   - r: The Recipient to add.
//
// Returns:
//   - An error wrapping ErrInvalidState, ErrInvalidEmailFormat, ErrBatchLimitExceeded or
//     ErrMissingDefaultSender, a delivery error in StateComposing, or nil.
func (s *Session) AddRecipient(ctx context.Context, r Recipient) error {
	if s.state != StateComposing && s.state != StateQueuing {
		return fmt.Errorf("%w: cannot add recipient in state %s", ErrInvalidState, s.state)
	}
	if err := ValidateEmail(r.Address); err != nil {
		return err
	}

	id := s.resolver.Resolve(ctx, s.msg, r)
	tokens := s.recipientTokens(id, r)
	if s.state == StateComposing {
		return s.sendNow(ctx, id, r, tokens)
	}
	return s.enqueue(id, r, tokens)
}

// SetRecipient sets the recipient used by Queue, Body and CustomHeaders.
func (s *Session) SetRecipient(r Recipient) {
	rc := r
	rc.Tokens = r.Tokens.Clone()
	s.current = &rc
}

// Queue adds the recipient set with SetRecipient.
func (s *Session) Queue(ctx context.Context) error {
	if s.current == nil {
		return ErrNoRecipient
	}
	return s.AddRecipient(ctx, *s.current)
}

// SetRecipients adds all given addresses with the same display name. It stops at the first
// address that fails.
func (s *Session) SetRecipients(ctx context.Context, addresses []string, name string) error {
	for _, addr := range addresses {
		if err := s.AddRecipient(ctx, Recipient{Address: addr, Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// FlushQueue hands all queued groups to the Transport, one physical message per group, and moves
// the Session to StateFlushed.
//
// A failing group does not stop the delivery of the remaining groups. Failures are recorded in
// the error ledger, see Errors. FlushQueue only fails if no group can be attempted because a
// group lacks a sender address, or if every group failed.
//
// Parameters:
//   - ctx: The context passed to the Transport.
//   - metadata: Additional metadata attached to every recipient of every group.
//
// Returns:
//   - An error wrapping ErrInvalidState, ErrMissingDefaultSender or ErrAllGroupsFailed, or nil.
func (s *Session) FlushQueue(ctx context.Context, metadata map[string]string) error {
	if s.state != StateQueuing {
		return fmt.Errorf("%w: cannot flush queue in state %s", ErrInvalidState, s.state)
	}
	for i, g := range s.groups {
		if g.identity.FromAddress == "" {
			return fmt.Errorf("%w: message group %d has no sender address", ErrMissingDefaultSender, i)
		}
	}

	groups := s.groups
	s.clearQueue()
	s.setState(StateFlushed)
	if len(groups) == 0 {
		s.logger.Infof(log.Log{Component: log.CompQueue, Format: "flushing empty queue"})
		return nil
	}

	failed := 0
	for i, g := range groups {
		pm := s.materialize(i, g, metadata)
		if s.deliver(ctx, pm) {
			failed++
		}
	}
	s.logger.Infof(log.Log{Component: log.CompQueue, Format: "flushed %d message group(s), %d failed",
		Messages: []interface{}{len(groups), failed}})
	if failed == len(groups) {
		return fmt.Errorf("%w: %d message group(s)", ErrAllGroupsFailed, failed)
	}
	return nil
}

// Errors returns the delivery failures recorded since the last Reset.
func (s *Session) Errors() []ErrorRecord {
	return s.ledger.All()
}

// Reset clears the queued recipients, the current recipient, the error ledger and the owner
// cache. If preserveMessage is true and a message is set, the Session returns to
// StateComposing, otherwise the message and the sender override are cleared as well and the
// Session returns to StateIdle.
func (s *Session) Reset(preserveMessage bool) {
	s.clearQueue()
	s.ledger.Reset()
	s.current = nil
	s.resolver.ResetCache()
	if preserveMessage && s.msg != nil {
		s.setState(StateComposing)
		return
	}
	s.msg = nil
	s.resolver.SetOverride(Sender{})
	s.setState(StateIdle)
}

// Body returns the HTML and plain text body of the current message as the recipient set with
// SetRecipient would receive it.
func (s *Session) Body() (string, string) {
	if s.msg == nil {
		return "", ""
	}
	return s.body.Compose(s.msg, s.previewTokens())
}

// CustomHeaders returns the headers of the current message as the recipient set with
// SetRecipient would receive them.
func (s *Session) CustomHeaders() *Headers {
	if s.msg == nil {
		return NewHeaders()
	}
	return s.headers.Compose(s.msg, s.previewTokens())
}

func (s *Session) previewTokens() Tokens {
	r := Recipient{}
	if s.current != nil {
		r = *s.current
	}
	id := s.resolver.Resolve(context.Background(), s.msg, r)
	return s.recipientTokens(id, r)
}

// recipientTokens returns the complete token set of a recipient. Recipient tokens win over
// message tokens, the signature always reflects the resolved identity.
func (s *Session) recipientTokens(id Identity, r Recipient) Tokens {
	tokens := NewTokens(nil)
	tokens.Set(TokenTrackingPixel, s.pixel)
	if s.msg != nil {
		tokens.Merge(NewTokens(s.msg.Tokens))
	}
	tokens.Merge(NewTokens(r.Tokens))
	tokens.Set(TokenSignature, id.Signature)

	if s.msg == nil || s.msg.EmailType != EmailTypeMarketing {
		return tokens
	}
	tokens.Set(TokenUnsubscribeURL, s.unsubscribeURL(r))
	return tokens
}

// unsubscribeURL returns the unsubscribe link of the recipient or an empty string if none can
// be built.
func (s *Session) unsubscribeURL(r Recipient) string {
	if s.urls == nil || r.IDHash == "" {
		return ""
	}
	u, err := s.urls.AbsoluteURL(RouteUnsubscribe, map[string]string{ParamIDHash: r.IDHash})
	if err != nil {
		s.logger.Warnf(log.Log{Component: log.CompCompose, Format: "failed to build unsubscribe URL for %s: %s",
			Messages: []interface{}{r.Address, err}})
		return ""
	}
	return u
}

// enqueue adds the recipient to its group
func (s *Session) enqueue(id Identity, r Recipient, tokens Tokens) error {
	if _, seen := s.identities[id]; !seen {
		if len(s.identities) >= s.identityLimit {
			return fmt.Errorf("%w: limit of %d reached, flush the queue first", ErrBatchLimitExceeded,
				s.identityLimit)
		}
		s.identities[id] = struct{}{}
	}

	g := s.targetGroup(id)
	if g == nil {
		g = &group{identity: id, msg: s.msg}
		s.groups = append(s.groups, g)
		s.logger.Debugf(log.Log{Component: log.CompQueue, Format: "opened message group %d for sender %s",
			Messages: []interface{}{len(s.groups) - 1, id.FromAddress}})
	}
	g.recipients = append(g.recipients, r)
	g.tokens = append(g.tokens, tokens)
	return nil
}

// targetGroup returns the open group the identity is appended to, or nil if a new group
// has to be opened.
func (s *Session) targetGroup(id Identity) *group {
	if len(s.groups) == 0 {
		return nil
	}
	var g *group
	switch s.grouping {
	case GroupContiguous:
		if last := s.groups[len(s.groups)-1]; last.identity == id {
			g = last
		}
	default:
		for i := len(s.groups) - 1; i >= 0; i-- {
			if s.groups[i].identity == id {
				g = s.groups[i]
				break
			}
		}
	}
	if g == nil || (s.groupSize > 0 && len(g.recipients) >= s.groupSize) {
		return nil
	}
	return g
}

// sendNow delivers the message to a single recipient
func (s *Session) sendNow(ctx context.Context, id Identity, r Recipient, tokens Tokens) error {
	if id.FromAddress == "" {
		return ErrMissingDefaultSender
	}
	g := &group{identity: id, msg: s.msg, recipients: []Recipient{r}, tokens: []Tokens{tokens}}
	pm := s.materialize(0, g, nil)
	if err := s.transport.Send(ctx, pm); err != nil {
		s.record(pm, err)
		return fmt.Errorf("failed to send message to %s: %w", r.Address, err)
	}
	return nil
}

// materialize builds the physical message of a group. Tokens shared by all recipients are
// substituted, the others are left for Personalize or the Transport.
func (s *Session) materialize(index int, g *group, metadata map[string]string) *PhysicalMessage {
	shared := commonTokens(g.tokens)
	html, text := s.body.Compose(g.msg, shared)
	pm := &PhysicalMessage{
		ID:         newMessageID(),
		Group:      index,
		Identity:   g.identity,
		Recipients: make([]RecipientData, len(g.recipients)),
		Subject:    Substitute(g.msg.Subject, shared),
		HTML:       html,
		Text:       text,
		Headers:    s.headers.Compose(g.msg, shared),
	}
	for i, r := range g.recipients {
		md := make(map[string]string, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		if r.IDHash != "" {
			md[ParamIDHash] = r.IDHash
		}
		pm.Recipients[i] = RecipientData{
			Address:  r.Address,
			Name:     r.Name,
			Tokens:   g.tokens[i],
			Metadata: md,
		}
	}
	return pm
}

// deliver sends a physical message and records failures. It returns true if the message
// failed for all of its recipients.
func (s *Session) deliver(ctx context.Context, pm *PhysicalMessage) bool {
	err := s.transport.Send(ctx, pm)
	if err == nil {
		s.logger.Debugf(log.Log{Component: log.CompTransport, Format: "sent message %s to %d recipient(s)",
			Messages: []interface{}{pm.ID, len(pm.Recipients)}})
		return false
	}
	s.logger.Warnf(log.Log{Component: log.CompTransport, Format: "delivery of message group %d failed: %s",
		Messages: []interface{}{pm.Group, err}})
	return s.record(pm, err) >= len(pm.Recipients)
}

// record adds the failed recipients of the physical message to the error ledger and returns
// their number.
func (s *Session) record(pm *PhysicalMessage, err error) int {
	var sendErr *SendError
	if errors.As(err, &sendErr) && len(sendErr.Rcpt()) > 0 {
		failed := make(map[string]struct{})
		for _, addr := range sendErr.Rcpt() {
			s.ledger.Record(addr, pm.Group, err.Error())
			failed[addr] = struct{}{}
		}
		return len(failed)
	}
	for _, r := range pm.Recipients {
		s.ledger.Record(r.Address, pm.Group, err.Error())
	}
	return len(pm.Recipients)
}

func (s *Session) clearQueue() {
	s.groups = nil
	s.identities = make(map[Identity]struct{})
}
