// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wneessen/go-mail-dispatch/log"
)

func TestBodyComposer_Compose(t *testing.T) {
	pixel := `<img height="1" width="1" src="` + BlankPixel + `" alt="" />`
	tests := []struct {
		name     string
		conf     StaticConfig
		html     string
		text     string
		wantHTML string
		wantText string
	}{
		{
			"tokens and pixel", StaticConfig{},
			"<html><body><p>{signature}</p></body></html>", "Text {signature}",
			"<html><body><p>Regards</p>" + pixel + "</body></html>", "Text Regards",
		},
		{
			"uppercase body tag", StaticConfig{},
			"<HTML><BODY>Hi</BODY></HTML>", "",
			"<HTML><BODY>Hi" + pixel + "</BODY></HTML>", "",
		},
		{
			"no body tag", StaticConfig{}, "<p>Hi</p>", "", "<p>Hi</p>" + pixel, "",
		},
		{
			"tracking disabled", StaticConfig{KeyAppendTrackingPixel: false},
			"<body>Hi</body>", "", "<body>Hi</body>", "",
		},
		{
			"empty html", StaticConfig{}, "", "Text only", "", "Text only",
		},
		{
			"pixel already placed", StaticConfig{},
			`<body><img src="{tracking_pixel}"></body>`, "",
			`<body><img src="` + BlankPixel + `"></body>`, "",
		},
	}
	tokens := Tokens{TokenSignature: "Regards", TokenTrackingPixel: BlankPixel}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBodyComposer(tt.conf, testLogger())
			gotHTML, gotText := bc.Compose(&OutboundMessage{HTML: tt.html, Text: tt.text}, tokens)
			if gotHTML != tt.wantHTML {
				t.Errorf("wrong HTML body.\nExpected: %s\ngot:      %s", tt.wantHTML, gotHTML)
			}
			if gotText != tt.wantText {
				t.Errorf("wrong text body. Expected: %s, got: %s", tt.wantText, gotText)
			}
		})
	}
}

func TestBodyComposer_DeferredPixel(t *testing.T) {
	bc := NewBodyComposer(StaticConfig{}, testLogger())
	html, _ := bc.Compose(&OutboundMessage{HTML: "<body>Hi</body>"}, Tokens{})
	if !strings.Contains(html, `src="{tracking_pixel}"`) {
		t.Errorf("pixel placeholder expected to be kept for later substitution, got: %s", html)
	}
	again, _ := bc.Compose(&OutboundMessage{HTML: html}, Tokens{})
	if again != html {
		t.Errorf("pixel must not be appended twice, got: %s", again)
	}
}

func TestAppendTrackingPixel(t *testing.T) {
	pixel := "<img/>"
	tests := []struct {
		name string
		body string
		want string
	}{
		{"lower case", "<body>Hi</body>", "<body>Hi<img/></body>"},
		{"upper case", "<BODY>Hi</BODY>", "<BODY>Hi<img/></BODY>"},
		{"last closing tag", "<body>a</body>b</Body >", "<body>a</body>b<img/></Body >"},
		{"no body tag", "<p>Hi</p>", "<p>Hi</p><img/>"},
		{"runes growing in lower case", "<body>ȺȺȺȺȺȺȺȺȺȺ</body>", "<body>ȺȺȺȺȺȺȺȺȺȺ<img/></body>"},
		{"runes shrinking in lower case", "<body>İİİİİİİİİİ</body>", "<body>İİİİİİİİİİ<img/></body>"},
		{"already present", "<body>Hi<img/></body>", "<body>Hi<img/></body>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := appendTrackingPixel(tt.body, pixel); got != tt.want {
				t.Errorf("wrong pixel placement. Expected: %q, got: %q", tt.want, got)
			}
		})
	}
}

func TestBodyComposer_NonASCIIBody(t *testing.T) {
	bc := NewBodyComposer(StaticConfig{}, testLogger())
	html, _ := bc.Compose(&OutboundMessage{HTML: "<body>ȺȺȺȺȺȺȺȺȺȺ</body>"}, Tokens{TokenTrackingPixel: BlankPixel})
	want := "<body>ȺȺȺȺȺȺȺȺȺȺ" + strings.ReplaceAll(TrackingPixelTag, "{tracking_pixel}", BlankPixel) + "</body>"
	if html != want {
		t.Errorf("wrong HTML body.\nExpected: %s\ngot:      %s", want, html)
	}
}

func TestBodyComposer_Minify(t *testing.T) {
	bc := NewBodyComposer(StaticConfig{KeyMinifyHTML: true, KeyAppendTrackingPixel: false}, testLogger())
	src := "<html>\n  <body>\n    <!-- comment -->\n    <p>Hello   {firstname}</p>\n" +
		"    <pre>  keep   this  </pre>\n    <a title=\"a   b\" href=\"#\">x</a>\n  </body>\n</html>"
	html, _ := bc.Compose(&OutboundMessage{HTML: src}, Tokens{"firstname": "Jane"})
	if strings.Contains(html, "comment") {
		t.Errorf("comments expected to be stripped, got: %s", html)
	}
	if strings.Contains(html, "\n  ") {
		t.Errorf("whitespace expected to be collapsed, got: %s", html)
	}
	if !strings.Contains(html, "<pre>  keep   this  </pre>") {
		t.Errorf("whitespace in pre elements must be preserved, got: %s", html)
	}
	if !strings.Contains(html, `title="a   b"`) {
		t.Errorf("attribute values must be preserved, got: %s", html)
	}
	if !strings.Contains(html, "Hello Jane") {
		t.Errorf("tokens expected to be substituted, got: %s", html)
	}
}

func TestMinifyHTML_Idempotent(t *testing.T) {
	docs := []string{
		"<html><head><title> Test </title></head><body>\n<p>a  b</p>\n<!-- x --></body></html>",
		"<div>\n\t<span>one</span>   <span>two</span>\n</div>",
		`<!--[if mso]><table><tr><td><![endif]--><p style="color: red;">Hi</p>`,
	}
	for _, doc := range docs {
		once, err := MinifyHTML(doc)
		if err != nil {
			t.Fatalf("failed to minify HTML: %s", err)
		}
		twice, err := MinifyHTML(once)
		if err != nil {
			t.Fatalf("failed to minify HTML: %s", err)
		}
		if once != twice {
			t.Errorf("minification is not idempotent.\nFirst:  %s\nSecond: %s", once, twice)
		}
	}
}

func TestBodyComposer_NilMessage(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bc := NewBodyComposer(StaticConfig{}, log.New(buf, log.LevelDebug))
	html, text := bc.Compose(nil, Tokens{})
	if html != "" || text != "" {
		t.Errorf("nil message expected to yield empty bodies")
	}
}
