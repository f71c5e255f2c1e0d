// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package redisq

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/log"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testMessage() *dispatch.PhysicalMessage {
	headers := dispatch.NewHeaders()
	headers.Set("X-Campaign", "spring")
	return &dispatch.PhysicalMessage{
		ID:    "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Group: 1,
		Identity: dispatch.Identity{
			FromAddress: "owner1@owner.com",
			FromName:    "Owner One",
			ReplyTo:     "reply@owner.com",
		},
		Recipients: []dispatch.RecipientData{
			{
				Address: "ann@example.com", Name: "Ann",
				Tokens:   dispatch.Tokens{"name": "Ann"},
				Metadata: map[string]string{"idHash": "a"},
			},
		},
		Subject: "Hello {name}",
		Text:    "Hi {name}",
		Headers: headers,
	}
}

func TestNew(t *testing.T) {
	_, client := testClient(t)
	tp := New(client, "", -1, nil)
	if tp.key != DefaultKey {
		t.Errorf("expected default key %s, got: %s", DefaultKey, tp.key)
	}
	if tp.BatchLimit() != 0 {
		t.Errorf("expected negative batch limit to be unbounded, got: %d", tp.BatchLimit())
	}
	if New(client, "jobs", 50, nil).BatchLimit() != 50 {
		t.Error("expected batch limit of 50")
	}
}

func TestTransport_SendNext(t *testing.T) {
	mr, client := testClient(t)
	tp := New(client, "jobs", 10, log.New(io.Discard, log.LevelDebug))
	ctx := context.Background()

	pm := testMessage()
	if err := tp.Send(ctx, pm); err != nil {
		t.Fatalf("failed to queue message: %s", err)
	}
	second := testMessage()
	second.ID = "01HZZZZZZZZZZZZZZZZZZZZZZY"
	if err := tp.Send(ctx, second); err != nil {
		t.Fatalf("failed to queue message: %s", err)
	}
	n, err := tp.Len(ctx)
	if err != nil {
		t.Fatalf("failed to read queue length: %s", err)
	}
	if n != 2 {
		t.Errorf("expected 2 queued jobs, got: %d", n)
	}
	if !mr.Exists("jobs") {
		t.Error("expected jobs list to exist in redis")
	}

	job, err := tp.Next(ctx, time.Second)
	if err != nil {
		t.Fatalf("failed to fetch job: %s", err)
	}
	if job.ID != pm.ID {
		t.Errorf("expected oldest job %s first, got: %s", pm.ID, job.ID)
	}
	got := job.Message()
	if got.Identity != pm.Identity {
		t.Errorf("expected identity %+v, got: %+v", pm.Identity, got.Identity)
	}
	if len(got.Recipients) != 1 || got.Recipients[0].Metadata["idHash"] != "a" {
		t.Errorf("unexpected recipients: %+v", got.Recipients)
	}
	if got.Headers.Get("X-Campaign") != "spring" {
		t.Errorf("expected X-Campaign header to survive, got: %q", got.Headers.Get("X-Campaign"))
	}
	if p := got.Personalize(0); p.Subject != "Hello Ann" {
		t.Errorf("expected personalized subject %q, got: %q", "Hello Ann", p.Subject)
	}
	if job.QueuedAt.IsZero() {
		t.Error("expected queued_at to be set")
	}
}

func TestTransport_Next_empty(t *testing.T) {
	_, client := testClient(t)
	tp := New(client, "jobs", 0, nil)
	if _, err := tp.Next(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got: %v", err)
	}
}

func TestTransport_Send_connectionError(t *testing.T) {
	mr, client := testClient(t)
	mr.Close()
	tp := New(client, "jobs", 0, nil)
	err := tp.Send(context.Background(), testMessage())
	var sendErr *dispatch.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got: %v", err)
	}
	if sendErr.Reason != dispatch.ErrReasonConnect {
		t.Errorf("expected connect failure, got: %s", sendErr.Reason)
	}
	if !sendErr.IsTemp() {
		t.Error("expected connection failure to be temporary")
	}
}

func TestSession_batchLimit(t *testing.T) {
	_, client := testClient(t)
	tp := New(client, "jobs", 2, nil)
	cfg := dispatch.StaticConfig{dispatch.KeyFromEmail: "mailer@example.com"}
	s, err := dispatch.NewSession(tp, cfg, dispatch.WithLogger(log.New(io.Discard, log.LevelWarn)))
	if err != nil {
		t.Fatalf("failed to create session: %s", err)
	}
	msg := &dispatch.OutboundMessage{Subject: "Hi", Text: "Hello", EmailType: dispatch.EmailTypeTransactional}
	if err = s.SetMessage(msg); err != nil {
		t.Fatalf("failed to set message: %s", err)
	}
	if err = s.EnableQueue(); err != nil {
		t.Fatalf("failed to enable queue: %s", err)
	}
	for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err = s.AddRecipient(context.Background(), dispatch.Recipient{Address: addr}); err != nil {
			t.Fatalf("failed to add recipient %s: %s", addr, err)
		}
	}
	if err = s.FlushQueue(context.Background(), nil); err != nil {
		t.Fatalf("failed to flush queue: %s", err)
	}
	n, err := tp.Len(context.Background())
	if err != nil {
		t.Fatalf("failed to read queue length: %s", err)
	}
	if n != 2 {
		t.Errorf("expected 3 recipients to be split into 2 jobs, got: %d", n)
	}
}
