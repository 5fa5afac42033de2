// Package store - Best-effort persistence of analysis results: a SQLite sink
// and an asynchronous queue in front of any sink.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrQueueFull is returned when the async queue cannot take another record.
var ErrQueueFull = errors.New("persistence queue full")

// ErrClosed is returned by sinks after Close.
var ErrClosed = errors.New("sink closed")

// Record is one persisted analysis. Document holds the full result as JSON.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	Document   []byte    `json:"document"`
}

// Sink persists records.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}
