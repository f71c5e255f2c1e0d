// SPDX-FileCopyrightText: Copyright (c) The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package log implements a logger interface that can be used within the dispatch package
package log

import "fmt"

const (
	CompResolver  Component = iota // Sender identity resolution
	CompCompose                    // Header and body composition
	CompQueue                      // Queueing and flushing of message groups
	CompTransport                  // Hand-off to the delivery transport
	CompHTTP                       // Unsubscribe endpoint
)

const (
	// LevelError is the Level for only ERROR log messages
	LevelError Level = iota
	// LevelWarn is the Level for WARN and ERROR log messages
	LevelWarn
	// LevelInfo is the Level for INFO, WARN and ERROR log messages
	LevelInfo
	// LevelDebug is the Level for all log messages
	LevelDebug
)

// ComponentKey is the attribute key used by structured loggers for the Component
const ComponentKey = "component"

// GroupKey is the group name used by structured loggers
const GroupKey = "dispatch"

// Component is a type wrapper for the dispatch stage a log message originates from
type Component int

// Level is a type wrapper for an int
type Level int

// Log represents a log message type that holds a Component, a Format string
// and a slice of Messages
type Log struct {
	Component Component
	Format    string
	Messages  []interface{}
}

// Logger is the log interface for the dispatch package
type Logger interface {
	Debugf(Log)
	Infof(Log)
	Warnf(Log)
	Errorf(Log)
}

// String satisfies the fmt.Stringer interface for the Component type.
func (c Component) String() string {
	switch c {
	case CompResolver:
		return "resolver"
	case CompCompose:
		return "compose"
	case CompQueue:
		return "queue"
	case CompTransport:
		return "transport"
	case CompHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Message returns the formatted message text
func (l Log) Message() string {
	if len(l.Messages) == 0 {
		return l.Format
	}
	return fmt.Sprintf(l.Format, l.Messages...)
}

// componentPrefix returns the bracketed prefix used by the plain text loggers
func (l Log) componentPrefix() string {
	return "[" + l.Component.String() + "]"
}
