// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package smtp provides a dispatch.Transport that delivers messages via SMTP using go-mail.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/log"
)

// ErrUnknownTLSPolicy is returned by New for an unsupported TLS policy name.
var ErrUnknownTLSPolicy = errors.New("unknown TLS policy")

// Config holds the connection settings of the SMTP Transport
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLSPolicy is one of "mandatory", "opportunistic" or "none"
	TLSPolicy string
	Timeout   time.Duration
}

// sender is the part of the go-mail Client used by the Transport
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Transport delivers every recipient of a physical message as an individual, fully
// personalized message. All messages of a physical message are sent over one connection.
type Transport struct {
	client sender
	logger log.Logger
}

// New returns a new SMTP Transport for the given Config.
func New(c Config, logger log.Logger) (*Transport, error) {
	policy, err := tlsPolicy(c.TLSPolicy)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{mail.WithTLSPortPolicy(policy)}
	if c.Port > 0 {
		opts = append(opts, mail.WithPort(c.Port))
	}
	if c.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(c.Timeout))
	}
	if c.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(c.Username),
			mail.WithPassword(c.Password))
	}
	client, err := mail.NewClient(c.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, log.LevelWarn)
	}
	return &Transport{client: client, logger: logger}, nil
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.TLSMandatory, fmt.Errorf("%w: %q", ErrUnknownTLSPolicy, name)
	}
}

// Send satisfies the dispatch.Transport interface.
//
// Recipients whose message cannot be built are reported as failed with
// dispatch.ErrReasonContent while the remaining recipients are still sent. Recipients
// rejected by the server are reported with dispatch.ErrReasonRcpt. If the connection fails,
// all recipients are reported with dispatch.ErrReasonConnect.
func (t *Transport) Send(ctx context.Context, pm *dispatch.PhysicalMessage) error {
	var (
		msgs      []*mail.Msg
		addrs     []string
		failed    []string
		buildErrs []error
	)
	for i := range pm.Recipients {
		msg, err := buildMsg(pm.Personalize(i))
		if err != nil {
			failed = append(failed, pm.Recipients[i].Address)
			buildErrs = append(buildErrs, err)
			continue
		}
		msgs = append(msgs, msg)
		addrs = append(addrs, pm.Recipients[i].Address)
	}
	if len(msgs) == 0 {
		return dispatch.NewSendError(dispatch.ErrReasonContent, false, failed, buildErrs...)
	}

	err := t.client.DialAndSendWithContext(ctx, msgs...)
	if err == nil {
		t.logger.Debugf(log.Log{Component: log.CompTransport, Format: "sent %d message(s) for %s",
			Messages: []interface{}{len(msgs), pm.ID}})
		if len(failed) > 0 {
			return dispatch.NewSendError(dispatch.ErrReasonContent, false, failed, buildErrs...)
		}
		return nil
	}

	temp := false
	rejected := 0
	for i, msg := range msgs {
		if !msg.HasSendError() {
			continue
		}
		rejected++
		failed = append(failed, addrs[i])
		var sendErr *mail.SendError
		if errors.As(msg.SendError(), &sendErr) && sendErr.IsTemp() {
			temp = true
		}
	}
	if rejected == 0 {
		return dispatch.NewSendError(dispatch.ErrReasonConnect, true, nil, err)
	}
	return dispatch.NewSendError(dispatch.ErrReasonRcpt, temp, failed, append(buildErrs, err)...)
}

// buildMsg turns a personalized message into a go-mail Msg
func buildMsg(p dispatch.Personalized) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(p.Identity.FromName, p.Identity.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.AddToFormat(p.To.Name, p.To.Address); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	if p.Identity.ReplyTo != "" && p.Identity.ReplyTo != p.Identity.FromAddress {
		if err := msg.ReplyTo(p.Identity.ReplyTo); err != nil {
			return nil, fmt.Errorf("failed to set Reply-To address: %w", err)
		}
	}
	msg.Subject(p.Subject)
	msg.SetMessageID()
	msg.SetDate()
	for _, f := range p.Headers.Fields() {
		msg.SetGenHeader(mail.Header(f.Name), f.Value)
	}

	switch {
	case p.HTML != "" && p.Text != "":
		msg.SetBodyString(mail.TypeTextPlain, p.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, p.HTML)
	case p.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, p.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, p.Text)
	}
	return msg, nil
}
