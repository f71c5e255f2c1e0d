// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

// ErrorRecord is a single delivery failure.
type ErrorRecord struct {
	Address string
	Group   int
	Reason  string
}

// ErrorLedger is the append-only list of delivery failures of a dispatch cycle.
type ErrorLedger struct {
	records []ErrorRecord
}

// Record appends a failure for the given address.
func (l *ErrorLedger) Record(address string, group int, reason string) {
	l.records = append(l.records, ErrorRecord{Address: address, Group: group, Reason: reason})
}

// All returns a copy of all recorded failures in the order they were recorded.
func (l *ErrorLedger) All() []ErrorRecord {
	out := make([]ErrorRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of recorded failures.
func (l *ErrorLedger) Len() int {
	return len(l.records)
}

// Reset clears the ledger.
func (l *ErrorLedger) Reset() {
	l.records = nil
}
