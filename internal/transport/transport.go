// Package transport defines the contracts for the external mailbox,
// reply, and notification systems, together with the error taxonomy the
// retry policy pattern-matches on: transient failures (timeouts, rate
// limits) may be retried, permanent failures (auth, validation) may not.
package transport

import (
	"context"
	"errors"
	"fmt"

	"smartmailer/internal/model"
)

// ErrorKind partitions transport failures for retry decisions.
type ErrorKind int

const (
	// KindTransient marks failures where a retry may succeed.
	KindTransient ErrorKind = iota
	// KindPermanent marks failures where retrying will not help.
	KindPermanent
)

// Error is a transport failure tagged with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Kind == KindPermanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable transport failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable transport failure.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// IsTransient reports whether err is a transient transport failure.
// Untagged errors count as transient so that unknown network conditions
// get the benefit of a retry.
func IsTransient(err error) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind == KindTransient
	}
	return true
}

// MailboxFetcher pulls new raw messages from the remote mailbox. The
// cursor is opaque to callers and advanced only after the orchestrator
// durably commits a cycle.
type MailboxFetcher interface {
	FetchNew(ctx context.Context, cursor string, maxCount int) ([]model.Message, string, error)
	Close() error
}

// ReplySender delivers a formatted reply over the outbound session.
type ReplySender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
	Close() error
}

// AlertNotifier delivers a formatted alert to the chat endpoint.
type AlertNotifier interface {
	SendAlert(ctx context.Context, text string) error
}
