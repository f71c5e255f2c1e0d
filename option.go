// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"errors"

	"github.com/wneessen/go-mail-dispatch/log"
)

// Grouping selects how queued recipients are combined into physical messages.
type Grouping int

const (
	// GroupByIdentity appends a recipient to the most recent group with the same sender
	// identity, even if groups of other identities were opened in between.
	GroupByIdentity Grouping = iota

	// GroupContiguous opens a new group whenever the identity differs from the one of the
	// previous recipient.
	GroupContiguous
)

// String satisfies the fmt.Stringer interface for the Grouping type.
func (g Grouping) String() string {
	switch g {
	case GroupByIdentity:
		return "by-identity"
	case GroupContiguous:
		return "contiguous"
	default:
		return "unknown"
	}
}

// Option is a function type that modifies the configuration of a Session.
type Option func(*Session) error

// ErrInvalidGrouping is returned by WithGrouping for an unknown Grouping.
var ErrInvalidGrouping = errors.New("invalid grouping")

// WithLogger sets the logger of the Session and its components.
func WithLogger(logger log.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithOwnerLookup sets the OwnerLookup used for the owner-as-sender policy.
func WithOwnerLookup(l OwnerLookup) Option {
	return func(s *Session) error {
		s.lookup = l
		return nil
	}
}

// WithURLBuilder sets the URLBuilder used to build unsubscribe links. Without a URLBuilder,
// marketing messages carry no unsubscribe headers.
func WithURLBuilder(b URLBuilder) Option {
	return func(s *Session) error {
		s.urls = b
		return nil
	}
}

// WithGrouping sets the Grouping policy of the Session. The default is GroupByIdentity.
func WithGrouping(g Grouping) Option {
	return func(s *Session) error {
		if g != GroupByIdentity && g != GroupContiguous {
			return ErrInvalidGrouping
		}
		s.grouping = g
		return nil
	}
}

// WithTrackingPixel sets the default value of the tracking_pixel token. The default is
// BlankPixel. Recipient tokens take precedence.
func WithTrackingPixel(src string) Option {
	return func(s *Session) error {
		s.pixel = src
		return nil
	}
}
