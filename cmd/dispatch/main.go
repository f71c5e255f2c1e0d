// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Command dispatch composes and dispatches bulk email.
package main

import (
	"os"

	"github.com/wneessen/go-mail-dispatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
