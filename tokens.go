// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"regexp"
)

const (
	// TokenSignature is replaced with the signature of the resolved sender identity.
	TokenSignature = "signature"

	// TokenTrackingPixel is replaced with the tracking pixel URL of the recipient. If the
	// recipient has none, BlankPixel is used.
	TokenTrackingPixel = "tracking_pixel"

	// TokenUnsubscribeURL is replaced with the absolute unsubscribe URL of the recipient.
	TokenUnsubscribeURL = "unsubscribe_url"
)

// BlankPixel is a 1x1 transparent GIF as data URI. It is the default value of the
// TokenTrackingPixel token.
const BlankPixel = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

// placeholderRegexp matches a single {token_name} placeholder
var placeholderRegexp = regexp.MustCompile(`\{([^{}\s]+)\}`)

// Tokens maps placeholder names (without the surrounding braces) to their replacement values.
//
// The well-known keys are TokenSignature, TokenTrackingPixel and TokenUnsubscribeURL, any other
// key is a custom field of the contact. Values are inserted verbatim. Placeholders contained in
// a value are never substituted themselves.
type Tokens map[string]string

// NewTokens returns a Tokens map holding a copy of the given values.
func NewTokens(values map[string]string) Tokens {
	t := make(Tokens, len(values))
	for k, v := range values {
		t.Set(k, v)
	}
	return t
}

// Placeholder returns the placeholder string for the given token name.
func Placeholder(name string) string {
	return "{" + name + "}"
}

// Set stores the value for the given token name.
func (t Tokens) Set(name, value string) {
	t[name] = value
}

// Clone returns a copy of the Tokens map. Cloning a nil map returns an empty map.
func (t Tokens) Clone() Tokens {
	c := make(Tokens, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Merge copies all values of other into t, overwriting existing keys.
func (t Tokens) Merge(other Tokens) {
	for k, v := range other {
		t[k] = v
	}
}

// Substitute replaces every {token_name} placeholder in tpl for which tokens holds a value.
// Placeholder names are case-sensitive. Placeholders without a value are left untouched, so
// they can be resolved later, e.g. per recipient by a batch capable transport. Substituted
// values are not scanned for placeholders again.
//
// Parameters:
//   - tpl: The template string containing the placeholders.
//   - tokens: The Tokens to substitute.
//
// Returns:
//   - The substituted string.
func Substitute(tpl string, tokens Tokens) string {
	if len(tokens) == 0 || tpl == "" {
		return tpl
	}
	return placeholderRegexp.ReplaceAllStringFunc(tpl, func(match string) string {
		if v, ok := tokens[match[1:len(match)-1]]; ok {
			return v
		}
		return match
	})
}

// commonTokens returns the tokens that have the same value in every given Tokens map. Values
// that contain a placeholder are left out, so they are only ever substituted in the final pass
// over the template, where they cannot be mistaken for placeholders.
func commonTokens(list []Tokens) Tokens {
	out := make(Tokens)
	if len(list) == 0 {
		return out
	}
	for k, v := range list[0] {
		if placeholderRegexp.MatchString(v) {
			continue
		}
		shared := true
		for _, t := range list[1:] {
			if ov, ok := t[k]; !ok || ov != v {
				shared = false
				break
			}
		}
		if shared {
			out[k] = v
		}
	}
	return out
}
