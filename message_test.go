// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestOutboundMessage_Clone(t *testing.T) {
	h := NewHeaders()
	h.Set("X-Test", "1")
	m := &OutboundMessage{Subject: "s", Headers: h, Tokens: Tokens{"a": "1"}}
	c := m.Clone()
	m.Headers.Set("X-Test", "2")
	m.Tokens["a"] = "2"
	m.Subject = "changed"
	if c.Headers.Get("X-Test") != "1" || c.Tokens["a"] != "1" || c.Subject != "s" {
		t.Errorf("Clone must not share state with the original: %+v", c)
	}
	var nilMsg *OutboundMessage
	if nilMsg.Clone() != nil {
		t.Errorf("cloning a nil message expected to return nil")
	}
}

func TestPhysicalMessage_Personalize(t *testing.T) {
	h := NewHeaders()
	h.Set("X-Contact", "{email}")
	h.Set(HeaderListUnsubscribe.String(), "<{unsubscribe_url}>")
	h.Set(HeaderListUnsubscribePost.String(), OneClickUnsubscribe)
	pm := &PhysicalMessage{
		ID:      newMessageID(),
		Subject: "Hi {firstname}",
		HTML:    "<p>{firstname}</p>",
		Text:    "{firstname}",
		Headers: h,
		Recipients: []RecipientData{
			{Address: "a@example.com", Tokens: Tokens{"firstname": "Ann", "email": "a@example.com",
				TokenUnsubscribeURL: "https://example.com/u/a"}},
			{Address: "b@example.com", Tokens: Tokens{"firstname": "Bob", "email": "b@example.com",
				TokenUnsubscribeURL: ""}},
		},
	}
	if _, err := ulid.ParseStrict(pm.ID); err != nil {
		t.Errorf("message ID expected to be a ULID: %s", err)
	}
	if got := pm.Addresses(); len(got) != 2 || got[1] != "b@example.com" {
		t.Errorf("unexpected addresses: %v", got)
	}

	a := pm.Personalize(0)
	if a.Subject != "Hi Ann" || a.HTML != "<p>Ann</p>" || a.Text != "Ann" {
		t.Errorf("recipient tokens not substituted: %+v", a)
	}
	if a.Headers.Get("X-Contact") != "a@example.com" {
		t.Errorf("header not personalized: %s", a.Headers.Get("X-Contact"))
	}
	if a.Headers.Get(HeaderListUnsubscribe.String()) != "<https://example.com/u/a>" {
		t.Errorf("unexpected List-Unsubscribe: %s", a.Headers.Get(HeaderListUnsubscribe.String()))
	}

	b := pm.Personalize(1)
	if b.Headers.Has(HeaderListUnsubscribe.String()) || b.Headers.Has(HeaderListUnsubscribePost.String()) {
		t.Errorf("recipient without unsubscribe URL must not get unsubscribe headers")
	}
	if pm.Headers.Get("X-Contact") != "{email}" {
		t.Errorf("Personalize must not modify the physical message")
	}
}
