// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"

	"github.com/wneessen/go-mail-dispatch/log"
)

// TrackingPixelTag is the image tag appended to HTML bodies when tracking is enabled
const TrackingPixelTag = `<img height="1" width="1" src="{tracking_pixel}" alt="" />`

const mimeHTML = "text/html"

// closingBodyRegexp matches the closing body tag in any letter case
var closingBodyRegexp = regexp.MustCompile(`(?i)</body\s*>`)

// htmlMinifier keeps document and end tags, attribute quotes and conditional comments since
// mail clients are far less forgiving than browsers.
var htmlMinifier = func() *minify.M {
	m := minify.New()
	m.Add(mimeHTML, &html.Minifier{
		KeepConditionalComments: true,
		KeepDocumentTags:        true,
		KeepEndTags:             true,
		KeepQuotes:              true,
	})
	return m
}()

// MinifyHTML collapses insignificant whitespace and strips comments from the given HTML
// document. Whitespace in pre elements and attribute values is preserved.
func MinifyHTML(s string) (string, error) {
	return htmlMinifier.String(mimeHTML, s)
}

// BodyComposer builds the final HTML and plain text bodies of a message.
type BodyComposer struct {
	minify bool
	track  bool
	logger log.Logger
}

// NewBodyComposer returns a BodyComposer configured by the KeyMinifyHTML and
// KeyAppendTrackingPixel entries of the given Config.
func NewBodyComposer(c Config, logger log.Logger) *BodyComposer {
	return &BodyComposer{
		minify: c.Bool(KeyMinifyHTML, false),
		track:  c.Bool(KeyAppendTrackingPixel, true),
		logger: logger,
	}
}

// Compose substitutes the tokens in the HTML and plain text body of the message, minifies the
// HTML body if enabled and appends the tracking pixel before the closing body tag if tracking
// is enabled and the HTML body is not empty. A body that fails to minify is used as is.
//
// Parameters:
//   - m: The OutboundMessage providing the body templates.
//   - tokens: The Tokens used to personalize the bodies.
//
// Returns:
//   - The HTML body.
//   - The plain text body.
func (bc *BodyComposer) Compose(m *OutboundMessage, tokens Tokens) (string, string) {
	if m == nil {
		return "", ""
	}
	placed := strings.Contains(m.HTML, Placeholder(TokenTrackingPixel))
	htmlBody := Substitute(m.HTML, tokens)
	textBody := Substitute(m.Text, tokens)

	if bc.minify && htmlBody != "" {
		minified, err := MinifyHTML(htmlBody)
		if err != nil {
			bc.logger.Warnf(log.Log{Component: log.CompCompose, Format: "failed to minify HTML body: %s",
				Messages: []interface{}{err}})
		} else {
			htmlBody = minified
		}
	}
	if bc.track && !placed && strings.TrimSpace(htmlBody) != "" {
		htmlBody = appendTrackingPixel(htmlBody, Substitute(TrackingPixelTag, tokens))
	}
	return htmlBody, textBody
}

// appendTrackingPixel inserts the pixel right before the last closing body tag, or at the end
// of the document if there is none. Bodies that already contain the pixel are left alone.
func appendTrackingPixel(body, pixel string) string {
	if strings.Contains(body, pixel) {
		return body
	}
	if tags := closingBodyRegexp.FindAllStringIndex(body, -1); len(tags) > 0 {
		i := tags[len(tags)-1][0]
		return body[:i] + pixel + body[i:]
	}
	return body + pixel
}
