// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package owner provides dispatch.OwnerLookup implementations backed by memory and Redis.
package owner

import (
	"context"
	"fmt"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// Table is a static in-memory OwnerLookup. A Table must not be modified while in use.
type Table map[string]*dispatch.Owner

// NewTable returns a Table holding the given owners, keyed by their ID.
func NewTable(owners ...dispatch.Owner) Table {
	t := make(Table, len(owners))
	for i := range owners {
		o := owners[i]
		t[o.ID] = &o
	}
	return t
}

// Owner satisfies the dispatch.OwnerLookup interface.
func (t Table) Owner(_ context.Context, id string) (*dispatch.Owner, error) {
	o, ok := t[id]
	if !ok || o == nil {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrOwnerNotFound, id)
	}
	c := *o
	return &c, nil
}
