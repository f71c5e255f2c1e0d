// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package job reads dispatch job files. A job file describes one message, the owners the
// recipients may reference and the recipients themselves.
package job

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/owner"
)

var (
	// ErrNoRecipients is returned if a job file lists no recipients.
	ErrNoRecipients = errors.New("job has no recipients")

	// ErrUnknownEmailType is returned for an email type other than marketing or transactional.
	ErrUnknownEmailType = errors.New("unknown email type")

	// ErrDuplicateOwner is returned if two owners share the same ID.
	ErrDuplicateOwner = errors.New("duplicate owner ID")
)

// File is the YAML representation of a job.
type File struct {
	Message    Message           `yaml:"message"`
	Owners     []Owner           `yaml:"owners,omitempty"`
	Recipients []Recipient       `yaml:"recipients"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// Message is the YAML representation of a dispatch.OutboundMessage.
type Message struct {
	Subject          string            `yaml:"subject"`
	HTML             string            `yaml:"html,omitempty"`
	Text             string            `yaml:"text,omitempty"`
	Type             string            `yaml:"type,omitempty"`
	FromAddress      string            `yaml:"from_address,omitempty"`
	FromName         string            `yaml:"from_name,omitempty"`
	ReplyTo          string            `yaml:"reply_to,omitempty"`
	UseOwnerAsSender bool              `yaml:"use_owner_as_sender,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	Tokens           map[string]string `yaml:"tokens,omitempty"`
}

// Owner is the YAML representation of a dispatch.Owner.
type Owner struct {
	ID        string `yaml:"id"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"first_name,omitempty"`
	LastName  string `yaml:"last_name,omitempty"`
	Signature string `yaml:"signature,omitempty"`
}

// Recipient is the YAML representation of a dispatch.Recipient.
type Recipient struct {
	Address string            `yaml:"address"`
	Name    string            `yaml:"name,omitempty"`
	Owner   string            `yaml:"owner,omitempty"`
	IDHash  string            `yaml:"id_hash,omitempty"`
	Tokens  map[string]string `yaml:"tokens,omitempty"`
}

// Load reads and parses the job file at path. Environment variables in the file are expanded.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse parses a job from YAML.
func Parse(data []byte) (*File, error) {
	f := new(File)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	if len(f.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if _, err := emailType(f.Message.Type); err != nil {
		return nil, err
	}
	return f, nil
}

// OutboundMessage returns the message of the job.
func (f *File) OutboundMessage() (*dispatch.OutboundMessage, error) {
	t, err := emailType(f.Message.Type)
	if err != nil {
		return nil, err
	}
	m := &dispatch.OutboundMessage{
		Subject:          f.Message.Subject,
		HTML:             f.Message.HTML,
		Text:             f.Message.Text,
		ReplyTo:          f.Message.ReplyTo,
		FromAddress:      f.Message.FromAddress,
		FromName:         f.Message.FromName,
		UseOwnerAsSender: f.Message.UseOwnerAsSender,
		EmailType:        t,
		Tokens:           dispatch.NewTokens(f.Message.Tokens),
	}
	if len(f.Message.Headers) > 0 {
		m.Headers = dispatch.HeadersFromMap(f.Message.Headers)
	}
	return m, nil
}

// OwnerTable returns the owners of the job as an in-memory lookup.
func (f *File) OwnerTable() (owner.Table, error) {
	owners := make([]dispatch.Owner, 0, len(f.Owners))
	seen := make(map[string]struct{}, len(f.Owners))
	for _, o := range f.Owners {
		if _, ok := seen[o.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOwner, o.ID)
		}
		seen[o.ID] = struct{}{}
		owners = append(owners, dispatch.Owner{
			ID: o.ID, Email: o.Email, FirstName: o.FirstName, LastName: o.LastName, Signature: o.Signature,
		})
	}
	return owner.NewTable(owners...), nil
}

// DispatchRecipients returns the recipients of the job in file order.
func (f *File) DispatchRecipients() []dispatch.Recipient {
	rcpts := make([]dispatch.Recipient, len(f.Recipients))
	for i, r := range f.Recipients {
		rcpts[i] = dispatch.Recipient{
			Address: strings.TrimSpace(r.Address),
			Name:    r.Name,
			OwnerID: r.Owner,
			IDHash:  r.IDHash,
			Tokens:  dispatch.NewTokens(r.Tokens),
		}
	}
	return rcpts
}

func emailType(s string) (dispatch.EmailType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "marketing":
		return dispatch.EmailTypeMarketing, nil
	case "transactional":
		return dispatch.EmailTypeTransactional, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownEmailType, s)
	}
}
