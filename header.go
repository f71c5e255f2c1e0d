// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"sort"
	"strings"
)

// Header is a type wrapper for a string and represents email header fields in a PhysicalMessage.
type Header string

const (
	// HeaderListUnsubscribe is the "List-Unsubscribe" header field.
	// https://datatracker.ietf.org/doc/html/rfc2369#section-3.2
	HeaderListUnsubscribe Header = "List-Unsubscribe"

	// HeaderListUnsubscribePost is the "List-Unsubscribe-Post" header field.
	// https://datatracker.ietf.org/doc/html/rfc8058#section-3.1
	HeaderListUnsubscribePost Header = "List-Unsubscribe-Post"

	// HeaderMessageID represents the "Message-ID" field for message identification.
	HeaderMessageID Header = "Message-ID"

	// HeaderPrecedence is the "Precedence" header field.
	HeaderPrecedence Header = "Precedence"

	// HeaderReplyTo is the "Reply-To" header field.
	HeaderReplyTo Header = "Reply-To"

	// HeaderXMailer is the "X-Mailer" header field.
	HeaderXMailer Header = "X-Mailer"
)

const (
	// OneClickUnsubscribe is the fixed List-Unsubscribe-Post value announcing one-click
	// unsubscribe support as described in RFC 8058.
	OneClickUnsubscribe = "List-Unsubscribe=One-Click"

	// PrecedenceBulk is the Precedence value attached to marketing messages.
	PrecedenceBulk = "bulk"
)

// String satisfies the fmt.Stringer interface for the Header type and returns the string
// representation of the Header.
//
// Returns:
//   - A string representing the Header.
func (h Header) String() string {
	return string(h)
}

// HeaderField is a single name/value pair of a Headers list.
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered list of header fields with case-insensitive names.
//
// Setting a field that already exists replaces its value (and the spelling of its name) in place,
// so the position of the first occurrence is preserved while the last value wins. The zero value
// is not usable, create Headers with NewHeaders.
type Headers struct {
	fields []HeaderField
	index  map[string]int
}

// NewHeaders returns an empty Headers list.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

// HeadersFromMap returns a Headers list holding the fields of the given map. Since Go maps are
// unordered, the fields are added in lexical order of their names.
func HeadersFromMap(m map[string]string) *Headers {
	h := NewHeaders()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Set(name, m[name])
	}
	return h
}

// Set stores the value for the given header name.
func (h *Headers) Set(name, value string) {
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.fields[i] = HeaderField{Name: name, Value: value}
		return
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Get returns the value of the given header name or an empty string if it is not present.
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	if i, ok := h.index[strings.ToLower(name)]; ok {
		return h.fields[i].Value
	}
	return ""
}

// Has reports whether the given header name is present.
func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[strings.ToLower(name)]
	return ok
}

// Del removes the given header name.
func (h *Headers) Del(name string) {
	key := strings.ToLower(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.fields = append(h.fields[:i], h.fields[i+1:]...)
	delete(h.index, key)
	for k, pos := range h.index {
		if pos > i {
			h.index[k] = pos - 1
		}
	}
}

// Len returns the number of header fields.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Fields returns a copy of the header fields in order.
func (h *Headers) Fields() []HeaderField {
	if h == nil {
		return nil
	}
	fields := make([]HeaderField, len(h.fields))
	copy(fields, h.fields)
	return fields
}

// Merge sets all fields of other on h, in the order of other.
func (h *Headers) Merge(other *Headers) {
	if other == nil {
		return
	}
	for _, f := range other.fields {
		h.Set(f.Name, f.Value)
	}
}

// Clone returns a deep copy of the Headers list.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	c.Merge(h)
	return c
}

// HeaderComposer merges the global custom headers, the message specific headers and the headers
// computed from the email type into the final header list of a message.
type HeaderComposer struct {
	global *Headers
}

// NewHeaderComposer returns a HeaderComposer that reads the global custom headers from the
// KeyCustomHeaders entry of the given Config.
func NewHeaderComposer(c Config) *HeaderComposer {
	return &HeaderComposer{global: HeadersFromMap(c.StringMap(KeyCustomHeaders))}
}

// Compose returns the header list for the message, personalized with the given tokens.
//
// Later sources win on name collisions: global custom headers < message headers < computed
// headers. Marketing messages get the List-Unsubscribe, List-Unsubscribe-Post and Precedence
// headers. The unsubscribe URL is taken from the TokenUnsubscribeURL token: if the token is
// missing, the placeholder is kept so it can be resolved per recipient later on; if it is
// present but empty, no unsubscribe headers are added. Transactional messages never carry
// the unsubscribe headers.
//
// Parameters:
//   - m: The OutboundMessage to compose the headers for.
//   - tokens: The Tokens used to personalize the header values.
//
// Returns:
//   - The composed Headers.
func (hc *HeaderComposer) Compose(m *OutboundMessage, tokens Tokens) *Headers {
	out := hc.global.Clone()
	if m != nil {
		out.Merge(m.Headers)
	}
	for i := range out.fields {
		out.fields[i].Value = Substitute(out.fields[i].Value, tokens)
	}
	if m == nil || m.EmailType != EmailTypeMarketing {
		out.Del(HeaderListUnsubscribe.String())
		out.Del(HeaderListUnsubscribePost.String())
		return out
	}

	out.Set(HeaderPrecedence.String(), PrecedenceBulk)
	unsubscribe, ok := tokens[TokenUnsubscribeURL]
	if !ok {
		unsubscribe = Placeholder(TokenUnsubscribeURL)
	}
	if unsubscribe == "" {
		out.Del(HeaderListUnsubscribe.String())
		out.Del(HeaderListUnsubscribePost.String())
		return out
	}
	out.Set(HeaderListUnsubscribe.String(), "<"+unsubscribe+">")
	out.Set(HeaderListUnsubscribePost.String(), OneClickUnsubscribe)
	return out
}
