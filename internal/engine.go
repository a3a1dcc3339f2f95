package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgrab/rgrab/utils"
)

// transferState is owned by exactly one Run invocation and dies with it.
// received persists across attempts; expected may grow but never shrink.
type transferState struct {
	received int64
	expected int64 // -1 until a response declares a length
	attempt  int
}

// Engine drives one resumable transfer through
// Init -> Probing -> Attempting -> (Retrying | Succeeded | Failed).
type Engine struct {
	target   Target
	cfg      Config
	client   *http.Client
	reporter *Reporter
	log      zerolog.Logger
}

func NewEngine(target Target, cfg Config, client *http.Client, reporter *Reporter) *Engine {
	if client == nil {
		client = NewClient(cfg)
	}
	return &Engine{
		target:   target,
		cfg:      cfg,
		client:   client,
		reporter: reporter,
		log:      utils.GetLogger("engine").With().Str("output", target.OutputPath).Logger(),
	}
}

// Run performs the download. The bool is the outcome: (true, nil) on
// success, (false, nil) when the retry budget ran out, (false, err) on a
// fatal error. Exhausting retries is a normal result, not an error.
func (e *Engine) Run(ctx context.Context) (bool, error) {
	var received int64
	if info, err := os.Stat(e.target.OutputPath); err == nil {
		received = info.Size()
		e.log.Debug().Int64("size", received).Msg("Resuming incomplete download")
	}

	if received > 0 {
		total, err := ProbeSize(ctx, e.client, e.target.URL, e.cfg)
		if err != nil {
			return false, err
		}
		if total <= received {
			e.log.Debug().Int64("size", received).Int64("total", total).Msg("File already complete, skipping")
			e.reporter.Completed(e.target, received)
			return true, nil
		}
	}

	if dir := filepath.Dir(e.target.OutputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, &TransferError{Kind: KindLocalIO, Op: "mkdir", URL: e.target.URL, Err: err}
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if received > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(e.target.OutputPath, flags, 0644)
	if err != nil {
		return false, &TransferError{Kind: KindLocalIO, Op: "open", URL: e.target.URL, Err: err}
	}
	defer out.Close()
	if err := lockFile(out); err != nil {
		return false, fmt.Errorf("locking %s: %w", e.target.OutputPath, ErrFileLocked)
	}
	defer unlockFile(out)

	state := &transferState{received: received, expected: -1}
	for state.attempt = 1; state.attempt <= e.cfg.MaxRetries; state.attempt++ {
		done, err := e.attempt(ctx, out, state)
		if err != nil {
			if isRecoverable(err) {
				e.log.Debug().Err(err).Int("attempt", state.attempt).Msg("Recoverable failure, retrying")
				continue
			}
			return false, err
		}
		if done {
			e.reporter.Completed(e.target, state.received)
			return true, nil
		}
		e.log.Debug().Int64("received", state.received).Int64("expected", state.expected).
			Int("attempt", state.attempt).Msg("Stream ended early, resuming from new offset")
	}
	e.log.Debug().Int("maxRetries", e.cfg.MaxRetries).Msg("Retry budget exhausted")
	return false, nil
}

// attempt runs one request/stream cycle. (true, nil) means the transfer
// finished; (false, nil) means the stream ended short of the declared
// length and the caller should retry from the new offset.
func (e *Engine) attempt(ctx context.Context, out *os.File, state *transferState) (bool, error) {
	req, err := newRequest(ctx, e.target.URL, e.cfg, state.received)
	if err != nil {
		return false, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if isCancelled(err) || ctx.Err() != nil {
			return false, &TransferError{Kind: KindCancelled, Op: "GET", URL: e.target.URL, Err: context.Canceled}
		}
		return false, newNetworkError("GET", e.target.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case state.received > 0 && resp.StatusCode == http.StatusOK:
		// Server ignored the Range header and is sending the full body;
		// drop the partial file and take it from the top.
		e.log.Warn().Int("statusCode", resp.StatusCode).Msg("Server doesn't support resume, starting from beginning")
		if err := out.Truncate(0); err != nil {
			return false, &TransferError{Kind: KindLocalIO, Op: "truncate", URL: e.target.URL, Err: err}
		}
		// A fresh-download handle has no O_APPEND, so the offset still
		// points past the truncated end; rewind or the restart lands
		// behind a hole.
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return false, &TransferError{Kind: KindLocalIO, Op: "seek", URL: e.target.URL, Err: err}
		}
		state.received = 0
		state.expected = -1
	case state.received > 0 && resp.StatusCode != http.StatusPartialContent:
		return false, newStatusError("GET", e.target.URL, resp.StatusCode)
	case state.received == 0 && resp.StatusCode != http.StatusOK:
		return false, newStatusError("GET", e.target.URL, resp.StatusCode)
	}

	if resp.ContentLength >= 0 {
		total := state.received + resp.ContentLength
		if state.expected >= 0 && total < state.expected {
			return false, fmt.Errorf("declared size shrank from %d to %d: %w", state.expected, total, ErrRemoteChanged)
		}
		state.expected = total
	}

	body := newThrottledReader(resp.Body, e.cfg.perTransferRate())
	defer body.Close()

	start := time.Now()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return false, &TransferError{Kind: KindLocalIO, Op: "write", URL: e.target.URL, Err: werr}
			}
			state.received += int64(n)
			snap := Snapshot{Received: state.received, Total: state.expected}
			if elapsed := time.Since(start).Seconds(); elapsed > 0 {
				snap.SpeedBPS = float64(state.received) / elapsed
			}
			e.reporter.Progress(e.target, snap)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if isCancelled(rerr) || ctx.Err() != nil {
				return false, &TransferError{Kind: KindCancelled, Op: "read", URL: e.target.URL, Err: context.Canceled}
			}
			return false, newNetworkError("read", e.target.URL, rerr)
		}
	}

	if state.expected >= 0 && state.received < state.expected {
		// Premature end of stream; recoverable, next attempt resumes.
		return false, nil
	}
	return true, nil
}
