// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package cli provides the commands of the dispatch command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wneessen/go-mail-dispatch/config"
	"github.com/wneessen/go-mail-dispatch/log"
)

// Log output formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatPlain = "plain"
)

var (
	cfgFile   string
	verbose   bool
	debug     bool
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Compose and dispatch bulk email",
	Long: `dispatch resolves the sender of every recipient, groups recipients sharing
the same sender into batched messages and hands them to SMTP, a pickup
directory or a Redis queue.

Example:
  dispatch send campaign.yaml           # Dispatch a job file
  dispatch validate a@example.com       # Check addresses
  dispatch serve                        # Serve the unsubscribe endpoint`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: defaults and DISPATCH_* environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json, plain)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadSettings reads and validates the configuration named by the --config flag
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err = settings.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return settings, nil
}

// newLogger returns the logger for the configured format. The --debug and --verbose flags take
// precedence over the --log-level flag, which takes precedence over the configuration.
func newLogger(w io.Writer, settings config.Log) log.Logger {
	level := log.ParseLevel(settings.Level)
	switch {
	case debug:
		level = log.LevelDebug
	case verbose:
		level = log.LevelInfo
	case logLevel != "":
		level = log.ParseLevel(logLevel)
	}
	format := settings.Format
	if logFormat != "" {
		format = logFormat
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		return log.NewJSON(w, level)
	case FormatPlain:
		return log.New(w, level)
	default:
		return log.NewCharm(w, level)
	}
}

// connectRedis returns a connected client for the configured URL, or nil if no URL is set
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
