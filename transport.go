// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import "context"

const (
	// RouteUnsubscribe is the route name passed to the URLBuilder for unsubscribe links
	RouteUnsubscribe = "email_unsubscribe"

	// ParamIDHash is the route parameter holding the contact's ID hash
	ParamIDHash = "idHash"
)

// Transport delivers physical messages.
//
// Send must either deliver the message to all of its recipients or return an error. To report
// that only some recipients failed, Send returns a *SendError listing the affected addresses.
// Any other error marks every recipient of the message as failed.
type Transport interface {
	Send(ctx context.Context, m *PhysicalMessage) error
}

// BatchTransport is a Transport that submits all recipients of a physical message in a single
// provider call and resolves the remaining placeholders per recipient itself.
type BatchTransport interface {
	Transport

	// BatchLimit returns the maximum number of recipients per submission, 0 for no limit.
	BatchLimit() int
}

// TransportFunc is an adapter to use ordinary functions as Transport.
type TransportFunc func(ctx context.Context, m *PhysicalMessage) error

// Send calls f(ctx, m).
func (f TransportFunc) Send(ctx context.Context, m *PhysicalMessage) error {
	return f(ctx, m)
}

// URLBuilder generates absolute URLs for named routes.
type URLBuilder interface {
	AbsoluteURL(route string, params map[string]string) (string, error)
}
