// SPDX-FileCopyrightText: Copyright (c) The go-mail Authors
//
// SPDX-License-Identifier: MIT

package log

import (
	"io"
	"log"
)

// Stdlog writes plain text lines through a standard library log.Logger. It is the default
// Logger of a dispatch Session.
type Stdlog struct {
	level Level
	out   *log.Logger
}

// CallDepth is the call depth passed to log.Logger.Output, so that file flags point at the
// caller of the Logger method
const CallDepth = 3

// levelLabels are the line labels per Level, padded to equal width
var levelLabels = [...]string{
	LevelError: "ERROR",
	LevelWarn:  " WARN",
	LevelInfo:  " INFO",
	LevelDebug: "DEBUG",
}

// New returns a new Stdlog writing to output that drops messages above the given Level
func New(output io.Writer, level Level) *Stdlog {
	return &Stdlog{level: level, out: log.New(output, "", log.LstdFlags)}
}

func (l *Stdlog) write(level Level, entry Log) {
	if l.level < level {
		return
	}
	_ = l.out.Output(CallDepth, levelLabels[level]+": "+entry.componentPrefix()+" "+entry.Message())
}

// Debugf logs a debug message
func (l *Stdlog) Debugf(entry Log) { l.write(LevelDebug, entry) }

// Infof logs an info message
func (l *Stdlog) Infof(entry Log) { l.write(LevelInfo, entry) }

// Warnf logs a warn message
func (l *Stdlog) Warnf(entry Log) { l.write(LevelWarn, entry) }

// Errorf logs an error message
func (l *Stdlog) Errorf(entry Log) { l.write(LevelError, entry) }
