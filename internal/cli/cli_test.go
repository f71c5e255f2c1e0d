// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/config"
	"github.com/wneessen/go-mail-dispatch/log"
	"github.com/wneessen/go-mail-dispatch/routing"
	"github.com/wneessen/go-mail-dispatch/transport/redisq"
	"github.com/wneessen/go-mail-dispatch/transport/smtp"
	"github.com/wneessen/go-mail-dispatch/transport/spool"
)

const testJob = `message:
  subject: "Hello {firstname}"
  html: "<html><body><p>Hi {firstname}</p>{signature}</body></html>"
  text: "Hi {firstname}"
  use_owner_as_sender: true
owners:
  - id: "1"
    email: owner1@owner.com
    first_name: Owner
    last_name: One
    signature: "Owner One"
recipients:
  - address: ann@example.com
    owner: "1"
    id_hash: a
    tokens:
      firstname: Ann
  - address: bob@example.com
    id_hash: b
    tokens:
      firstname: Bob
  - address: not-an-address
  - address: cid@example.com
    owner: "1"
    id_hash: c
    tokens:
      firstname: Cid
`

// setup resets the command line state and isolates the test from the environment
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := config.DotEnvFile
	config.DotEnvFile = filepath.Join(dir, ".env")
	t.Cleanup(func() {
		config.DotEnvFile = old
		cfgFile, verbose, debug, logLevel, logFormat = "", false, false, "", ""
		sendImmediate, sendContiguous = false, false
	})
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %s", path, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCmd(t *testing.T) {
	setup(t)
	out, err := execute(t, "validate", "ann@example.com", "not-an-address")
	if !errors.Is(err, ErrInvalidAddresses) {
		t.Errorf("expected ErrInvalidAddresses, got: %v", err)
	}
	if !strings.Contains(out, "ann@example.com\tok") {
		t.Errorf("expected valid address to be reported ok, got: %s", out)
	}
	if strings.Contains(out, "not-an-address\tok") {
		t.Errorf("expected invalid address to be rejected, got: %s", out)
	}

	if _, err = execute(t, "validate", "ann@example.com"); err != nil {
		t.Errorf("expected valid address to pass, got: %s", err)
	}
}

func TestSendCmd_spool(t *testing.T) {
	dir := setup(t)
	spoolDir := filepath.Join(dir, "spool")
	cfg := writeFile(t, filepath.Join(dir, "dispatch.yaml"), `mailer:
  from_email: mailer@example.com
  from_name: Mailer
transport:
  kind: spool
  spool:
    dir: `+spoolDir+`
server:
  base_url: https://example.com/
`)
	jobFile := writeFile(t, filepath.Join(dir, "job.yaml"), testJob)

	out, err := execute(t, "--config", cfg, "send", jobFile)
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if out != "" {
		t.Errorf("expected no failed recipients, got: %s", out)
	}
	files, err := filepath.Glob(filepath.Join(spoolDir, "*"+spool.FileExt))
	if err != nil {
		t.Fatalf("failed to list spool directory: %s", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 spooled messages, got: %d", len(files))
	}

	ids := make(map[string]int)
	var ownerMail string
	for _, f := range files {
		ids[strings.SplitN(filepath.Base(f), "_", 2)[0]]++
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("failed to read spooled message: %s", err)
		}
		if strings.Contains(string(data), "To: <cid@example.com>") {
			ownerMail = string(data)
		}
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 physical messages (owner and default sender), got: %d", len(ids))
	}
	if !strings.Contains(ownerMail, "owner1@owner.com") {
		t.Error("expected message to cid to be sent by the owner")
	}
	if !strings.Contains(ownerMail, "https://example.com/email/unsubscribe/c") {
		t.Error("expected personalized unsubscribe URL in message to cid")
	}
}

func TestSendCmd_errors(t *testing.T) {
	dir := setup(t)
	if _, err := execute(t, "send"); err == nil {
		t.Error("expected error for missing job argument")
	}
	cfg := writeFile(t, filepath.Join(dir, "dispatch.yaml"), "transport:\n  kind: carrier-pigeon\n")
	if _, err := execute(t, "--config", cfg, "send", filepath.Join(dir, "job.yaml")); !errors.Is(err, config.ErrUnknownTransport) {
		t.Errorf("expected ErrUnknownTransport, got: %v", err)
	}
	cfg = writeFile(t, filepath.Join(dir, "dispatch.yaml"), "transport:\n  kind: spool\n  spool:\n    dir: "+dir+"\n")
	if _, err := execute(t, "--config", cfg, "send", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing job file")
	}
}

func TestSendCmd_redis(t *testing.T) {
	dir := setup(t)
	mr := miniredis.RunT(t)
	if _, err := mr.SAdd(routing.UnsubscribedKey, "b"); err != nil {
		t.Fatalf("failed to seed unsubscribes: %s", err)
	}
	mr.Set(config.RedisKeyPrefix+dispatch.KeyFromEmail, "overlay@example.com")
	cfg := writeFile(t, filepath.Join(dir, "dispatch.yaml"), `transport:
  kind: redis
  queue:
    key: jobs
redis:
  url: redis://`+mr.Addr()+`
`)
	jobFile := writeFile(t, filepath.Join(dir, "job.yaml"), testJob)

	if _, err := execute(t, "--config", cfg, "send", jobFile); err != nil {
		t.Fatalf("send failed: %s", err)
	}
	list, err := mr.List("jobs")
	if err != nil {
		t.Fatalf("failed to read job list: %s", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 job for the owner group, got: %d", len(list))
	}
	if !strings.Contains(list[0], `"from_address":"owner1@owner.com"`) {
		t.Errorf("expected job from the owner, got: %s", list[0])
	}
	if strings.Contains(list[0], "bob@example.com") {
		t.Error("unsubscribed recipient must be skipped")
	}
}

func TestDeliver_FailedCycleContinues(t *testing.T) {
	ctx := context.Background()
	var sent []string
	tp := dispatch.TransportFunc(func(_ context.Context, m *dispatch.PhysicalMessage) error {
		sent = append(sent, m.Identity.FromAddress)
		return errors.New("connection refused")
	})
	logger := log.New(io.Discard, log.LevelError)
	owners := dispatch.OwnerLookupFunc(func(_ context.Context, id string) (*dispatch.Owner, error) {
		return &dispatch.Owner{ID: id, Email: "owner" + id + "@example.com"}, nil
	})
	session, err := dispatch.NewSession(tp, dispatch.StaticConfig{
		dispatch.KeyFromEmail:     "mailer@example.com",
		dispatch.KeyIdentityLimit: 1,
	}, dispatch.WithLogger(logger), dispatch.WithOwnerLookup(owners))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	if err = session.SetMessage(&dispatch.OutboundMessage{Subject: "Hi", Text: "Hi",
		UseOwnerAsSender: true}); err != nil {
		t.Fatalf("failed to set message: %s", err)
	}
	if err = session.EnableQueue(); err != nil {
		t.Fatalf("failed to enable queue: %s", err)
	}

	rcpts := []dispatch.Recipient{
		{Address: "ann@example.com", OwnerID: "1"},
		{Address: "bob@example.com", OwnerID: "2"},
		{Address: "not-an-address", OwnerID: "2"},
	}
	_, rejected, err := deliver(ctx, session, rcpts, nil, nil, logger)
	if !errors.Is(err, dispatch.ErrAllGroupsFailed) {
		t.Errorf("expected ErrAllGroupsFailed, got: %v", err)
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejected recipient, got: %d", rejected)
	}
	if len(sent) != 2 || sent[0] != "owner1@example.com" || sent[1] != "owner2@example.com" {
		t.Errorf("expected one message per queue cycle, got: %v", sent)
	}
	errs := session.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected both recipients in the ledger, got: %v", errs)
	}
	if errs[0].Address != "ann@example.com" || errs[1].Address != "bob@example.com" {
		t.Errorf("unexpected ledger: %v", errs)
	}
}

func TestNewLogger(t *testing.T) {
	setup(t)
	tests := []struct {
		name   string
		format string
		want   interface{}
	}{
		{"text", FormatText, &log.Charmlog{}},
		{"json", FormatJSON, &log.JSONlog{}},
		{"plain", FormatPlain, &log.Stdlog{}},
		{"default", "", &log.Charmlog{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLogger(io.Discard, config.Log{Format: tt.format})
			switch tt.want.(type) {
			case *log.Charmlog:
				if _, ok := l.(*log.Charmlog); !ok {
					t.Errorf("expected Charmlog, got: %T", l)
				}
			case *log.JSONlog:
				if _, ok := l.(*log.JSONlog); !ok {
					t.Errorf("expected JSONlog, got: %T", l)
				}
			case *log.Stdlog:
				if _, ok := l.(*log.Stdlog); !ok {
					t.Errorf("expected Stdlog, got: %T", l)
				}
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	dir := setup(t)
	logger := log.New(io.Discard, log.LevelWarn)

	s := config.Default()
	tp, err := newTransport(s, nil, logger)
	if err != nil {
		t.Fatalf("failed to create smtp transport: %s", err)
	}
	if _, ok := tp.(*smtp.Transport); !ok {
		t.Errorf("expected smtp transport, got: %T", tp)
	}

	s.Transport.Kind = config.TransportSpool
	s.Transport.Spool.Dir = filepath.Join(dir, "spool")
	if tp, err = newTransport(s, nil, logger); err != nil {
		t.Fatalf("failed to create spool transport: %s", err)
	}
	if _, ok := tp.(*spool.Transport); !ok {
		t.Errorf("expected spool transport, got: %T", tp)
	}
	s.Transport.Spool.DKIMKeyPath = filepath.Join(dir, "missing.pem")
	if _, err = newTransport(s, nil, logger); err == nil {
		t.Error("expected error for missing DKIM key")
	}

	s.Transport.Kind = config.TransportRedis
	if _, err = newTransport(s, nil, logger); err == nil {
		t.Error("expected error for redis transport without client")
	}
	mr := miniredis.RunT(t)
	client, err := connectRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("failed to connect to redis: %s", err)
	}
	defer func() { _ = client.Close() }()
	if tp, err = newTransport(s, client, logger); err != nil {
		t.Fatalf("failed to create redis transport: %s", err)
	}
	if _, ok := tp.(*redisq.Transport); !ok {
		t.Errorf("expected redis transport, got: %T", tp)
	}
}

func TestConnectRedis(t *testing.T) {
	client, err := connectRedis(context.Background(), "")
	if err != nil || client != nil {
		t.Errorf("expected no client for empty URL, got: %v, %v", client, err)
	}
	if _, err = connectRedis(context.Background(), "://invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, log.New(io.Discard, log.LevelWarn)) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
