// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// ErrInvalidAddresses is returned by the validate command if any address is invalid.
var ErrInvalidAddresses = errors.New("invalid email address(es)")

var validateCmd = &cobra.Command{
	Use:   "validate <address>...",
	Short: "Validate email addresses",
	Long: `Validate email addresses the same way recipients are validated before they
are queued. Every address is printed followed by "ok" or the reason it was
rejected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invalid := 0
		for _, addr := range args {
			if err := dispatch.ValidateEmail(addr); err != nil {
				invalid++
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", addr, err)
				continue
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\n", addr)
		}
		if invalid > 0 {
			return fmt.Errorf("%w: %d of %d", ErrInvalidAddresses, invalid, len(args))
		}
		return nil
	},
}
