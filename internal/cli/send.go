// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	dispatch "github.com/wneessen/go-mail-dispatch"
	"github.com/wneessen/go-mail-dispatch/config"
	"github.com/wneessen/go-mail-dispatch/internal/job"
	"github.com/wneessen/go-mail-dispatch/log"
	"github.com/wneessen/go-mail-dispatch/owner"
	"github.com/wneessen/go-mail-dispatch/routing"
	"github.com/wneessen/go-mail-dispatch/transport/redisq"
	"github.com/wneessen/go-mail-dispatch/transport/smtp"
	"github.com/wneessen/go-mail-dispatch/transport/spool"
)

// ownerCacheTTL is the lifetime of cached owner records
const ownerCacheTTL = 5 * time.Minute

var (
	sendImmediate  bool
	sendContiguous bool
)

var sendCmd = &cobra.Command{
	Use:   "send <job.yaml>",
	Short: "Dispatch a job file",
	Long: `Dispatch the message of a job file to all of its recipients.

Recipients are queued and flushed at the end, so recipients sharing the same
sender are delivered in batched messages. With --immediate every recipient is
sent on its own as soon as it is added. Recipients that unsubscribed through
the unsubscribe endpoint are skipped for marketing mail.

Failed recipients are printed as "address<TAB>group<TAB>reason".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSend(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendImmediate, "immediate", false, "send every recipient on its own instead of queuing")
	sendCmd.Flags().BoolVar(&sendContiguous, "contiguous", false, "only group consecutive recipients with the same sender")
}

func runSend(ctx context.Context, path string, stdout, stderr io.Writer) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(stderr, settings.Log)

	file, err := job.Load(path)
	if err != nil {
		return err
	}
	msg, err := file.OutboundMessage()
	if err != nil {
		return err
	}

	client, err := connectRedis(ctx, settings.Redis.URL)
	if err != nil {
		return err
	}
	if client != nil {
		defer func() { _ = client.Close() }()
	}

	var cfg dispatch.Config = settings
	if client != nil {
		overlay := config.NewOverlay(client, settings)
		if err = overlay.Refresh(ctx); err != nil {
			return err
		}
		cfg = overlay
	}

	lookup, err := ownerLookup(file, client)
	if err != nil {
		return err
	}
	router, err := routing.New(settings.Server.BaseURL)
	if err != nil {
		return err
	}
	tp, err := newTransport(settings, client, logger)
	if err != nil {
		return err
	}

	grouping := dispatch.GroupByIdentity
	if sendContiguous {
		grouping = dispatch.GroupContiguous
	}
	session, err := dispatch.NewSession(tp, cfg,
		dispatch.WithLogger(logger),
		dispatch.WithOwnerLookup(lookup),
		dispatch.WithURLBuilder(router),
		dispatch.WithGrouping(grouping),
	)
	if err != nil {
		return err
	}
	if err = session.SetMessage(msg); err != nil {
		return err
	}
	if !sendImmediate {
		if err = session.EnableQueue(); err != nil {
			return err
		}
	}

	var unsubscribes routing.UnsubscribeStore
	if client != nil && msg.EmailType == dispatch.EmailTypeMarketing {
		unsubscribes = routing.NewRedisUnsubscribes(client)
	}
	skipped, rejected, err := deliver(ctx, session, file.DispatchRecipients(), file.Metadata, unsubscribes, logger)

	for _, rec := range session.Errors() {
		_, _ = fmt.Fprintf(stdout, "%s\t%d\t%s\n", rec.Address, rec.Group, rec.Reason)
	}
	logger.Infof(log.Log{Component: log.CompQueue,
		Format:   "job %s done: %d recipient(s), %d failed, %d rejected, %d unsubscribed",
		Messages: []interface{}{path, len(file.Recipients), len(session.Errors()), rejected, skipped}})
	return err
}

// deliver adds the recipients to the session and flushes the queue unless the session sends
// immediately. If the distinct sender cap is reached, the queue is flushed and restarted. A
// queue cycle in which every message failed does not stop the remaining recipients, its error
// is returned once all recipients were processed. The failures stay in the session ledger.
func deliver(ctx context.Context, session *dispatch.Session, rcpts []dispatch.Recipient,
	metadata map[string]string, unsubscribes routing.UnsubscribeStore, logger log.Logger,
) (skipped, rejected int, err error) {
	var cycleErr error
	flush := func() error {
		ferr := session.FlushQueue(ctx, metadata)
		if errors.Is(ferr, dispatch.ErrAllGroupsFailed) {
			cycleErr = ferr
			return nil
		}
		return ferr
	}

	for _, rcpt := range rcpts {
		if unsubscribes != nil && rcpt.IDHash != "" {
			gone, err := unsubscribes.IsUnsubscribed(ctx, rcpt.IDHash)
			if err != nil {
				return skipped, rejected, fmt.Errorf("failed to check unsubscribe status: %w", err)
			}
			if gone {
				skipped++
				continue
			}
		}
		err = session.AddRecipient(ctx, rcpt)
		if errors.Is(err, dispatch.ErrBatchLimitExceeded) {
			// too many distinct senders in this cycle, deliver what we have and start over
			if err = flush(); err != nil {
				return skipped, rejected, err
			}
			if err = session.EnableQueue(); err != nil {
				return skipped, rejected, err
			}
			err = session.AddRecipient(ctx, rcpt)
		}
		switch {
		case err == nil:
		case errors.Is(err, dispatch.ErrInvalidEmailFormat), errors.Is(err, dispatch.ErrMissingDefaultSender):
			rejected++
			logger.Warnf(log.Log{Component: log.CompQueue, Format: "skipping recipient %q: %s",
				Messages: []interface{}{rcpt.Address, err}})
		case session.State() != dispatch.StateQueuing:
			// immediate send, the failure is recorded in the error ledger
		default:
			return skipped, rejected, err
		}
	}
	if session.State() == dispatch.StateQueuing {
		if err = flush(); err != nil {
			return skipped, rejected, err
		}
	}
	return skipped, rejected, cycleErr
}

// ownerLookup returns the owners of the job file, or the Redis owner store if the job lists
// no owners and Redis is configured
func ownerLookup(file *job.File, client *redis.Client) (dispatch.OwnerLookup, error) {
	if len(file.Owners) > 0 || client == nil {
		return file.OwnerTable()
	}
	return owner.NewCache(client, owner.NewRedisStore(client), ownerCacheTTL), nil
}

// newTransport returns the Transport selected by the configuration
func newTransport(settings *config.Settings, client *redis.Client, logger log.Logger) (dispatch.Transport, error) {
	switch settings.Transport.Kind {
	case config.TransportSMTP:
		c := settings.Transport.SMTP
		return smtp.New(smtp.Config{
			Host:      c.Host,
			Port:      c.Port,
			Username:  c.Username,
			Password:  c.Password,
			TLSPolicy: c.TLSPolicy,
			Timeout:   c.Timeout,
		}, logger)
	case config.TransportSpool:
		c := settings.Transport.Spool
		opts := []spool.Option{spool.WithLogger(logger)}
		if c.DKIMKeyPath != "" {
			signer, err := spool.LoadSigner(c.DKIMSelector, c.DKIMDomain, c.DKIMKeyPath)
			if err != nil {
				return nil, err
			}
			opts = append(opts, spool.WithSigner(signer))
		}
		return spool.New(c.Dir, opts...)
	case config.TransportRedis:
		if client == nil {
			return nil, errors.New("the redis transport requires redis.url")
		}
		c := settings.Transport.Queue
		return redisq.New(client, c.Key, c.BatchLimit, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, settings.Transport.Kind)
	}
}
