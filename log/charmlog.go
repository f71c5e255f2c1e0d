// SPDX-FileCopyrightText: Copyright (c) The go-mail Authors
//
// SPDX-License-Identifier: MIT

package log

import (
	"io"

	charm "github.com/charmbracelet/log"
)

// Charmlog is a human friendly terminal logger that satisfies the Logger interface. It is
// backed by a charmbracelet logger and is mainly used by the dispatch command line tool.
type Charmlog struct {
	level Level
	log   *charm.Logger
}

// NewCharm returns a new Charmlog type that satisfies the Logger interface
func NewCharm(output io.Writer, level Level) *Charmlog {
	logger := charm.NewWithOptions(output, charm.Options{
		ReportTimestamp: true,
		Prefix:          GroupKey,
	})
	switch level {
	case LevelDebug:
		logger.SetLevel(charm.DebugLevel)
	case LevelInfo:
		logger.SetLevel(charm.InfoLevel)
	case LevelWarn:
		logger.SetLevel(charm.WarnLevel)
	default:
		logger.SetLevel(charm.ErrorLevel)
	}
	return &Charmlog{level: level, log: logger}
}

// Debugf logs a debug message via the charm logger
func (l *Charmlog) Debugf(log Log) {
	if l.level >= LevelDebug {
		l.log.Debug(log.Message(), ComponentKey, log.Component.String())
	}
}

// Infof logs a info message via the charm logger
func (l *Charmlog) Infof(log Log) {
	if l.level >= LevelInfo {
		l.log.Info(log.Message(), ComponentKey, log.Component.String())
	}
}

// Warnf logs a warn message via the charm logger
func (l *Charmlog) Warnf(log Log) {
	if l.level >= LevelWarn {
		l.log.Warn(log.Message(), ComponentKey, log.Component.String())
	}
}

// Errorf logs a error message via the charm logger
func (l *Charmlog) Errorf(log Log) {
	if l.level >= LevelError {
		l.log.Error(log.Message(), ComponentKey, log.Component.String())
	}
}

// ParseLevel maps the textual level names used in configuration files and flags to a Level.
// Unknown names map to LevelWarn.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}
