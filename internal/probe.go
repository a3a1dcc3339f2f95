package internal

import (
	"context"
	"errors"
	"net/http"

	"github.com/rgrab/rgrab/utils"
)

// ProbeSize asks the server for the total content length without pulling
// the body. HEAD first; some servers reject HEAD outright, so a GET with
// an immediately-discarded body is the fallback. Cancelling ctx aborts
// the in-flight request.
func ProbeSize(ctx context.Context, client *http.Client, url string, cfg Config) (int64, error) {
	log := utils.GetLogger("probe")
	size, err := probe(ctx, client, http.MethodHead, url, cfg)
	if err == nil {
		return size, nil
	}
	var terr *TransferError
	if !errors.As(err, &terr) || terr.Kind != KindStatus {
		return 0, err
	}
	if terr.Status != http.StatusMethodNotAllowed && terr.Status != http.StatusForbidden {
		return 0, err
	}
	log.Debug().Int("status", terr.Status).Str("url", url).Msg("HEAD rejected, probing with GET")
	return probe(ctx, client, http.MethodGet, url, cfg)
}

func probe(ctx context.Context, client *http.Client, method, url string, cfg Config) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		if isCancelled(err) {
			return 0, &TransferError{Kind: KindCancelled, Op: method, URL: url, Err: err}
		}
		return 0, newNetworkError(method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, newStatusError(method, url, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, ErrNoContentLength
	}
	return resp.ContentLength, nil
}
