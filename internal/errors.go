package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrFileLocked means another process (or engine instance) holds the
	// destination file. Always fatal, never retried.
	ErrFileLocked = errors.New("destination file is locked by another process")

	// ErrRemoteChanged means the server's declared size shrank between
	// attempts, so the on-disk prefix can no longer be trusted.
	ErrRemoteChanged = errors.New("remote content changed during download")

	ErrNoContentLength = errors.New("server didn't provide Content-Length header")
)

type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindStatus
	KindLocalIO
	KindCancelled
)

// TransferError carries enough context to classify a failed operation
// without string matching at the call site.
type TransferError struct {
	Kind   ErrorKind
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransferError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.Status)
	case KindLocalIO:
		return fmt.Sprintf("%s %s: local I/O error: %v", e.Op, e.URL, e.Err)
	case KindCancelled:
		return fmt.Sprintf("%s %s: cancelled: %v", e.Op, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newNetworkError(op, url string, err error) *TransferError {
	return &TransferError{Kind: KindNetwork, Op: op, URL: url, Err: err}
}

func newStatusError(op, url string, status int) *TransferError {
	return &TransferError{Kind: KindStatus, Op: op, URL: url, Status: status}
}

// isCancelled reports whether err stems from the caller's cancellation
// signal rather than a server-side failure. Cancellation must stop the
// retry loop, not consume budget.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isConnectionClosed classifies the one transport condition worth
// retrying: the peer dropped the connection mid-stream.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr) && netErr.Op == "read"
}

// isRecoverable decides whether an attempt failure consumes a retry or
// aborts the transfer. Cancellation and local I/O are always fatal.
func isRecoverable(err error) bool {
	if err == nil || isCancelled(err) {
		return false
	}
	if errors.Is(err, ErrFileLocked) || errors.Is(err, ErrRemoteChanged) {
		return false
	}
	var terr *TransferError
	if errors.As(err, &terr) {
		switch terr.Kind {
		case KindLocalIO, KindCancelled, KindStatus:
			return false
		}
	}
	return isConnectionClosed(err)
}
