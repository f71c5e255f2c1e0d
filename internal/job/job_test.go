// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

const testJob = `message:
  subject: "Hello {firstname}"
  html: "<p>Hi {firstname}</p>{signature}"
  text: "Hi {firstname}"
  type: marketing
  use_owner_as_sender: true
  headers:
    X-Campaign: ${TEST_CAMPAIGN}
  tokens:
    campaign: spring
owners:
  - id: "1"
    email: owner1@owner.com
    first_name: Owner
    last_name: One
    signature: "Kind regards"
recipients:
  - address: " ann@example.com "
    name: Ann
    owner: "1"
    id_hash: abc
    tokens:
      firstname: Ann
  - address: bob@example.com
    tokens:
      firstname: Bob
metadata:
  campaign_id: "42"
`

func TestLoad(t *testing.T) {
	t.Setenv("TEST_CAMPAIGN", "spring-2024")
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(testJob), 0o600); err != nil {
		t.Fatalf("failed to write job file: %s", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load job: %s", err)
	}

	m, err := f.OutboundMessage()
	if err != nil {
		t.Fatalf("failed to convert message: %s", err)
	}
	if m.EmailType != dispatch.EmailTypeMarketing {
		t.Errorf("expected marketing message, got: %s", m.EmailType)
	}
	if !m.UseOwnerAsSender {
		t.Error("expected use_owner_as_sender to be set")
	}
	if got := m.Headers.Get("X-Campaign"); got != "spring-2024" {
		t.Errorf("expected expanded X-Campaign header, got: %q", got)
	}
	if m.Tokens["campaign"] != "spring" {
		t.Errorf("expected message token campaign, got: %q", m.Tokens["campaign"])
	}

	rcpts := f.DispatchRecipients()
	if len(rcpts) != 2 {
		t.Fatalf("expected 2 recipients, got: %d", len(rcpts))
	}
	if rcpts[0].Address != "ann@example.com" {
		t.Errorf("expected trimmed address, got: %q", rcpts[0].Address)
	}
	if rcpts[0].OwnerID != "1" || rcpts[0].IDHash != "abc" {
		t.Errorf("unexpected first recipient: %+v", rcpts[0])
	}
	if rcpts[1].Tokens["firstname"] != "Bob" {
		t.Errorf("expected token firstname Bob, got: %q", rcpts[1].Tokens["firstname"])
	}
	if f.Metadata["campaign_id"] != "42" {
		t.Errorf("expected metadata campaign_id 42, got: %q", f.Metadata["campaign_id"])
	}

	owners, err := f.OwnerTable()
	if err != nil {
		t.Fatalf("failed to build owner table: %s", err)
	}
	o, err := owners.Owner(context.Background(), "1")
	if err != nil {
		t.Fatalf("failed to look up owner: %s", err)
	}
	if o.Email != "owner1@owner.com" || o.Signature != "Kind regards" {
		t.Errorf("unexpected owner: %+v", o)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing job file")
	}
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no recipients", "message:\n  subject: x\n", ErrNoRecipients},
		{"unknown type", "message:\n  type: newsletter\nrecipients:\n  - address: a@example.com\n", ErrUnknownEmailType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("expected %s, got: %v", tt.want, err)
			}
		})
	}
	if _, err := Parse([]byte("message: [")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestFile_OwnerTable_duplicate(t *testing.T) {
	f := &File{Owners: []Owner{{ID: "1"}, {ID: "1"}}}
	if _, err := f.OwnerTable(); !errors.Is(err, ErrDuplicateOwner) {
		t.Errorf("expected ErrDuplicateOwner, got: %v", err)
	}
}

func TestEmailType(t *testing.T) {
	tests := []struct {
		in   string
		want dispatch.EmailType
	}{
		{"", dispatch.EmailTypeMarketing},
		{"Marketing", dispatch.EmailTypeMarketing},
		{" transactional ", dispatch.EmailTypeTransactional},
	}
	for _, tt := range tests {
		got, err := emailType(tt.in)
		if err != nil {
			t.Errorf("emailType(%q) failed: %s", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("emailType(%q): expected %s, got: %s", tt.in, tt.want, got)
		}
	}
}
