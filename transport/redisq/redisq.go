// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package redisq provides a dispatch.BatchTransport that hands physical messages to external
// delivery workers through a Redis list.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/log"
)

// DefaultKey is the default Redis list the jobs are pushed to
const DefaultKey = "dispatch:jobs"

// ErrEmptyQueue is returned by Next if no job became available before the timeout.
var ErrEmptyQueue = errors.New("no job in queue")

// Recipient is the serialized form of a dispatch.RecipientData.
type Recipient struct {
	Address  string            `json:"address"`
	Name     string            `json:"name,omitempty"`
	Tokens   map[string]string `json:"tokens,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Job is the serialized form of a physical message. The remaining placeholders in Subject,
// bodies and headers are substituted by the worker with the tokens of each recipient.
type Job struct {
	ID          string            `json:"id"`
	Group       int               `json:"group"`
	FromAddress string            `json:"from_address"`
	FromName    string            `json:"from_name,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Recipients  []Recipient       `json:"recipients"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueuedAt    time.Time         `json:"queued_at"`
}

// Transport pushes one Job per physical message onto a Redis list and announces its ID on the
// Pub/Sub channel of the same name.
type Transport struct {
	client     *redis.Client
	key        string
	batchLimit int
	logger     log.Logger
}

// New returns a new Transport. An empty key selects DefaultKey. A batchLimit of 0 means the
// workers accept any number of recipients per job.
func New(client *redis.Client, key string, batchLimit int, logger log.Logger) *Transport {
	if key == "" {
		key = DefaultKey
	}
	if batchLimit < 0 {
		batchLimit = 0
	}
	if logger == nil {
		logger = log.New(os.Stderr, log.LevelWarn)
	}
	return &Transport{client: client, key: key, batchLimit: batchLimit, logger: logger}
}

// BatchLimit satisfies the dispatch.BatchTransport interface.
func (t *Transport) BatchLimit() int {
	return t.batchLimit
}

// Send satisfies the dispatch.Transport interface.
func (t *Transport) Send(ctx context.Context, pm *dispatch.PhysicalMessage) error {
	data, err := json.Marshal(NewJob(pm))
	if err != nil {
		return dispatch.NewSendError(dispatch.ErrReasonContent, false, pm.Addresses(), err)
	}
	pipe := t.client.Pipeline()
	pipe.LPush(ctx, t.key, data)
	pipe.Publish(ctx, t.key, pm.ID)
	if _, err = pipe.Exec(ctx); err != nil {
		return dispatch.NewSendError(dispatch.ErrReasonConnect, true, nil,
			fmt.Errorf("failed to queue job %s: %w", pm.ID, err))
	}
	t.logger.Debugf(log.Log{Component: log.CompTransport, Format: "queued job %s with %d recipient(s) on %s",
		Messages: []interface{}{pm.ID, len(pm.Recipients), t.key}})
	return nil
}

// Next blocks up to timeout for the oldest queued Job. It returns ErrEmptyQueue if none arrived.
func (t *Transport) Next(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := t.client.BRPop(ctx, timeout, t.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmptyQueue
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}
	job := new(Job)
	if err = json.Unmarshal([]byte(res[1]), job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}

// Len returns the number of queued jobs.
func (t *Transport) Len(ctx context.Context) (int64, error) {
	return t.client.LLen(ctx, t.key).Result()
}

// NewJob converts a physical message into a Job.
func NewJob(pm *dispatch.PhysicalMessage) Job {
	job := Job{
		ID:          pm.ID,
		Group:       pm.Group,
		FromAddress: pm.Identity.FromAddress,
		FromName:    pm.Identity.FromName,
		ReplyTo:     pm.Identity.ReplyTo,
		Recipients:  make([]Recipient, len(pm.Recipients)),
		Subject:     pm.Subject,
		HTML:        pm.HTML,
		Text:        pm.Text,
		QueuedAt:    time.Now().UTC(),
	}
	for i, r := range pm.Recipients {
		job.Recipients[i] = Recipient{Address: r.Address, Name: r.Name, Tokens: r.Tokens, Metadata: r.Metadata}
	}
	if pm.Headers != nil && pm.Headers.Len() > 0 {
		job.Headers = make(map[string]string, pm.Headers.Len())
		for _, f := range pm.Headers.Fields() {
			job.Headers[f.Name] = f.Value
		}
	}
	return job
}

// Message converts the Job back into a physical message.
func (j *Job) Message() *dispatch.PhysicalMessage {
	pm := &dispatch.PhysicalMessage{
		ID:    j.ID,
		Group: j.Group,
		Identity: dispatch.Identity{
			FromAddress: j.FromAddress,
			FromName:    j.FromName,
			ReplyTo:     j.ReplyTo,
		},
		Recipients: make([]dispatch.RecipientData, len(j.Recipients)),
		Subject:    j.Subject,
		HTML:       j.HTML,
		Text:       j.Text,
		Headers:    dispatch.HeadersFromMap(j.Headers),
	}
	for i, r := range j.Recipients {
		pm.Recipients[i] = dispatch.RecipientData{Address: r.Address, Name: r.Name, Tokens: r.Tokens, Metadata: r.Metadata}
	}
	return pm
}
