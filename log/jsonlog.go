// SPDX-FileCopyrightText: Copyright (c) The go-mail Authors
//
// SPDX-License-Identifier: MIT

package log

import (
	"context"
	"io"
	"log/slog"
)

// JSONlog writes one JSON object per message through log/slog. The Component is reported as
// attribute of the GroupKey group.
type JSONlog struct {
	level Level
	log   *slog.Logger
}

// NewJSON returns a new JSONlog writing to output that drops messages above the given Level
func NewJSON(output io.Writer, level Level) *JSONlog {
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slogLevel(level)})
	return &JSONlog{level: level, log: slog.New(handler).WithGroup(GroupKey)}
}

// slogLevel maps a Level to the corresponding slog.Level
func slogLevel(level Level) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (l *JSONlog) write(level Level, entry Log) {
	if l.level < level {
		return
	}
	l.log.Log(context.Background(), slogLevel(level), entry.Message(),
		slog.String(ComponentKey, entry.Component.String()))
}

// Debugf logs a debug message
func (l *JSONlog) Debugf(entry Log) { l.write(LevelDebug, entry) }

// Infof logs an info message
func (l *JSONlog) Infof(entry Log) { l.write(LevelInfo, entry) }

// Warnf logs a warn message
func (l *JSONlog) Warnf(entry Log) { l.write(LevelWarn, entry) }

// Errorf logs an error message
func (l *JSONlog) Errorf(entry Log) { l.write(LevelError, entry) }
