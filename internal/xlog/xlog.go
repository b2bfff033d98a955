// Package xlog is the small logging seam shared by the trie, proof, state
// and witness packages. It mirrors the minimal Logger contract those
// packages need without forcing every caller onto a concrete logging
// backend.
package xlog

import "github.com/ethereum/go-ethereum/log"

// Logger is the subset of structured logging every component here needs.
// A nil Logger is never passed around; callers default to Noop() or
// Default().
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	IsTrace() bool
	IsDebug() bool
}

// gethLogger adapts the standard go-ethereum logger, always reporting
// IsTrace/IsDebug true since go-ethereum's global logger filters by level
// internally.
type gethLogger struct{}

func (gethLogger) Trace(msg string, ctx ...interface{}) { log.Trace(msg, ctx...) }
func (gethLogger) Debug(msg string, ctx ...interface{}) { log.Debug(msg, ctx...) }
func (gethLogger) IsTrace() bool                        { return true }
func (gethLogger) IsDebug() bool                        { return true }

// Default returns a Logger backed by github.com/ethereum/go-ethereum/log.
func Default() Logger { return gethLogger{} }

type noopLogger struct{}

func (noopLogger) Trace(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) IsTrace() bool                { return false }
func (noopLogger) IsDebug() bool                { return false }

// Noop returns a Logger that discards everything. Useful in tests and for
// callers that have no logging backend wired up.
func Noop() Logger { return noopLogger{} }
