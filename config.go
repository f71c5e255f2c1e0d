// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"fmt"
	"strconv"
	"strings"
)

// Configuration keys read by the dispatch components
const (
	// KeyFromEmail is the global default sender address
	KeyFromEmail = "mailer_from_email"
	// KeyFromName is the global default sender name
	KeyFromName = "mailer_from_name"
	// KeyReplyToEmail is the global Reply-To address
	KeyReplyToEmail = "mailer_reply_to_email"
	// KeyCustomHeaders holds the custom headers added to every message
	KeyCustomHeaders = "mailer_custom_headers"
	// KeyMinifyHTML enables the minification of HTML bodies
	KeyMinifyHTML = "minify_email_html"
	// KeyAppendTrackingPixel enables the tracking pixel for HTML bodies
	KeyAppendTrackingPixel = "mailer_append_tracking_pixel"
	// KeyIdentityLimit is the maximum number of distinct sender identities per queue cycle
	KeyIdentityLimit = "mailer_identity_limit"
	// KeyGroupSize is the maximum number of recipients per physical message
	KeyGroupSize = "mailer_batch_size"
	// KeyDefaultSignature is the signature used when no owner signature applies.
	// The string |FROM_NAME| is replaced with the resolved sender name.
	KeyDefaultSignature = "default_signature_text"
)

const (
	// DefaultIdentityLimit is the distinct identity cap used when KeyIdentityLimit is not set
	DefaultIdentityLimit = 1000

	// DefaultGroupSize is the per-message recipient cap for transports that are not batch capable
	DefaultGroupSize = 20
)

// Config provides read access to the dispatch configuration. Implementations must be safe for
// concurrent reads.
type Config interface {
	String(key, def string) string
	Bool(key string, def bool) bool
	Int(key string, def int) int
	StringMap(key string) map[string]string
}

// StaticConfig is a map based Config. Values may be strings, booleans, integers or, for
// KeyCustomHeaders, a map[string]string.
type StaticConfig map[string]any

// String returns the value for key as string or def if the key is not set.
func (c StaticConfig) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Bool returns the value for key as bool or def if the key is not set or not a boolean.
func (c StaticConfig) Bool(key string, def bool) bool {
	switch val := c[key].(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns the value for key as int or def if the key is not set or not a number.
func (c StaticConfig) Int(key string, def int) int {
	switch val := c[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}

// StringMap returns the value for key as map or nil if the key is not set.
func (c StaticConfig) StringMap(key string) map[string]string {
	switch val := c[key].(type) {
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, v := range val {
			out[k] = v
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(val))
		for k, v := range val {
			out[k] = fmt.Sprint(v)
		}
		return out
	default:
		return nil
	}
}
