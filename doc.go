// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package dispatch composes one logical email send into one or many physical messages.
//
// A Session takes an OutboundMessage and a stream of Recipient values. For every recipient it
// resolves the sender identity (global default, message override, session override or the
// contact owner), personalizes subject, body and headers through placeholder tokens and either
// hands a single message to the Transport right away or, in queue mode, groups recipients that
// share the same identity into batches that are submitted on FlushQueue. Transport failures are
// collected in an ErrorLedger instead of aborting the remaining batches.
//
// A Session is a sequential builder and must not be used from multiple goroutines at once.
// Independent sessions can run in parallel as long as the Config and OwnerLookup they share are
// safe for concurrent reads.
package dispatch

// VERSION is used in the default X-Mailer header of the transports
const VERSION = "0.1.0"
