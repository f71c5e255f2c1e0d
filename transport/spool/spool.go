// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package spool provides a dispatch.Transport that writes RFC 5322 messages into a pickup
// directory, optionally DKIM signed.
package spool

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/oklog/ulid/v2"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/log"
)

// FileExt is the file extension of spooled messages
const FileExt = ".eml"

// Transport writes one file per recipient into a spool directory. Files are written to a
// temporary name first and renamed when complete, so a pickup process never sees partial
// messages.
type Transport struct {
	dir    string
	signer *Signer
	logger log.Logger
	now    func() time.Time
}

// Option configures a spool Transport.
type Option func(*Transport)

// WithSigner DKIM signs every message with the given Signer.
func WithSigner(s *Signer) Option {
	return func(t *Transport) {
		t.signer = s
	}
}

// WithLogger sets the logger of the Transport.
func WithLogger(l log.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// New returns a new spool Transport writing to dir. The directory is created if it does
// not exist.
func New(dir string, opts ...Option) (*Transport, error) {
	if dir == "" {
		return nil, errors.New("spool directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	t := &Transport{dir: dir, logger: log.New(os.Stderr, log.LevelWarn), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send satisfies the dispatch.Transport interface.
func (t *Transport) Send(ctx context.Context, pm *dispatch.PhysicalMessage) error {
	var (
		failed []string
		errs   []error
	)
	for i := range pm.Recipients {
		if err := ctx.Err(); err != nil {
			return dispatch.NewSendError(dispatch.ErrReasonConnect, true, remaining(pm, i, failed), err)
		}
		p := pm.Personalize(i)
		if err := t.write(pm.ID, p); err != nil {
			failed = append(failed, p.To.Address)
			errs = append(errs, err)
		}
	}
	if len(failed) > 0 {
		return dispatch.NewSendError(dispatch.ErrReasonContent, false, failed, errs...)
	}
	t.logger.Debugf(log.Log{Component: log.CompTransport, Format: "spooled %d message(s) for %s",
		Messages: []interface{}{len(pm.Recipients), pm.ID}})
	return nil
}

// remaining returns the already failed addresses plus all recipients from index i on
func remaining(pm *dispatch.PhysicalMessage, i int, failed []string) []string {
	out := append([]string(nil), failed...)
	for _, r := range pm.Recipients[i:] {
		out = append(out, r.Address)
	}
	return out
}

func (t *Transport) write(id string, p dispatch.Personalized) error {
	data, err := Render(p, t.now())
	if err != nil {
		return err
	}
	if t.signer != nil {
		if data, err = t.signer.Sign(data, p.Identity.FromAddress); err != nil {
			return err
		}
	}

	name := filepath.Join(t.dir, fmt.Sprintf("%s_%s%s", id, hashRecipient(p.To.Address), FileExt))
	tmp := name + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	if err = os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move spool file into place: %w", err)
	}
	return nil
}

func hashRecipient(addr string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(addr))))
	return hex.EncodeToString(sum[:8])
}

// Render writes the personalized message in RFC 5322 format. Messages with both an HTML and
// a plain text body are written as multipart/alternative.
func Render(p dispatch.Personalized, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: p.Identity.FromName, Address: p.Identity.FromAddress}})
	h.SetAddressList("To", []*mail.Address{{Name: p.To.Name, Address: p.To.Address}})
	if p.Identity.ReplyTo != "" && p.Identity.ReplyTo != p.Identity.FromAddress {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: p.Identity.ReplyTo}})
	}
	h.SetSubject(p.Subject)
	h.SetMessageID(messageID(p.Identity.FromAddress))
	for _, f := range p.Headers.Fields() {
		h.Set(f.Name, f.Value)
	}

	var buf bytes.Buffer
	if p.HTML == "" || p.Text == "" {
		contentType, body := "text/plain", p.Text
		if p.HTML != "" {
			contentType, body = "text/html", p.HTML
		}
		h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err = io.WriteString(w, body); err != nil {
			return nil, fmt.Errorf("failed to write message body: %w", err)
		}
		if err = w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close message writer: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	for _, part := range []struct{ contentType, body string }{
		{"text/plain", p.Text},
		{"text/html", p.HTML},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		pw, err := mw.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s part: %w", part.contentType, err)
		}
		if _, err = io.WriteString(pw, part.body); err != nil {
			return nil, fmt.Errorf("failed to write %s part: %w", part.contentType, err)
		}
		if err = pw.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s part: %w", part.contentType, err)
		}
	}
	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// messageID returns a new unique message ID in the domain of the sender
func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		domain = from[i+1:]
	}
	return ulid.Make().String() + "@" + domain
}
