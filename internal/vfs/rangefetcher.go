package vfs

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jpillora/backoff"

	"github.com/rivenmedia/rivenfs/cfg"
	"github.com/rivenmedia/rivenfs/internal/logger"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
)

// urlRefresher asks for a fresh unrestricted URL for path, bypassing any
// cached one. It is satisfied by *urlresolver.Resolver combined with the
// URL cache, wired together by refreshingResolver in handletable.go; kept as
// an interface here so
// rangeFetcher does not need to import urlresolver/urlcache directly.
type urlRefresher interface {
	refreshURL(ctx context.Context, path string) (string, bool)
}

// rangeFetcher owns one HTTP client per handle (RangeFetcher, C6) and
// implements the status-code policy table from the streaming-read design:
// 206 and 200-at-offset-zero succeed, 200-at-nonzero-offset and
// 403/404/410 trigger a single URL refresh + retry (a 200 at a nonzero
// offset that survives it is an I/O error), 416 yields an empty read, and
// any transport-level error is retried once, after a backoff pause, on a
// separate keep-alive-disabled client with Connection: close. That retry
// still speaks HTTP/1.1, since net/http ignores the request's Proto fields,
// and still honours the response's Content-Length.
type rangeFetcher struct {
	cfg cfg.StreamingConfig

	client     *http.Client
	legacyOnce *http.Client // built lazily, keep-alive-disabled Connection: close fallback

	backoff *backoff.Backoff
}

func newRangeFetcher(streamCfg cfg.StreamingConfig) *rangeFetcher {
	return &rangeFetcher{
		cfg: streamCfg,
		client: &http.Client{
			Timeout: streamCfg.HttpTimeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: streamCfg.HttpConnectTimeout(),
				}).DialContext,
				DisableKeepAlives: !streamCfg.EnableHttpKeepalive,
			},
		},
		backoff: &backoff.Backoff{
			Min:    50 * time.Millisecond,
			Max:    2 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

func (f *rangeFetcher) close() {
	f.client.CloseIdleConnections()
	if f.legacyOnce != nil {
		f.legacyOnce.CloseIdleConnections()
	}
}

// get fetches bytes [start, end] inclusive of url, refreshing the URL via
// refresher at most once per call when the server indicates it is stale
// (403/404/410, or a 200 returned for a nonzero start), per §4.7.
func (f *rangeFetcher) get(ctx context.Context, path, url string, start, end int64, refresher urlRefresher) ([]byte, error) {
	body, status, err := f.doRange(ctx, url, start, end, false)

	if err == nil && needsRefresh(status, start) {
		if fresh, ok := refresher.refreshURL(ctx, path); ok {
			url = fresh
			body, status, err = f.doRange(ctx, url, start, end, false)
		}
	}

	if err != nil {
		wait := f.backoff.Duration()
		logger.Warnf("%s -> range fetch transport error, retrying with legacy client in %s: %v", path, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", vfserr.ErrIO, ctx.Err())
		}
		body, status, err = f.doRange(ctx, url, start, end, true)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vfserr.ErrIO, err)
		}
	}
	f.backoff.Reset()

	switch {
	case status == http.StatusPartialContent:
		return body, nil
	case status == http.StatusOK && start == 0:
		want := end - start + 1
		if want >= 0 && int64(len(body)) > want {
			body = body[:want]
		}
		return body, nil
	case status == http.StatusOK:
		return nil, fmt.Errorf("%w: server ignored range request at offset %d", vfserr.ErrIO, start)
	case status == http.StatusRequestedRangeNotSatisfiable:
		return nil, nil
	case status >= 400:
		return nil, fmt.Errorf("%w: unexpected status %d", vfserr.ErrIO, status)
	default:
		return body, nil
	}
}

func needsRefresh(status int, start int64) bool {
	switch status {
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	case http.StatusOK:
		return start > 0
	}
	return false
}

func (f *rangeFetcher) doRange(ctx context.Context, url string, start, end int64, legacy bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("User-Agent", "rivenfs")

	client := f.client
	if legacy {
		req.Header.Set("Connection", "close")
		req.Close = true
		req.Proto = "HTTP/1.0"
		req.ProtoMajor = 1
		req.ProtoMinor = 0
		client = f.legacyClient()
	} else if f.cfg.EnableHttpKeepalive {
		req.Header.Set("Connection", "keep-alive")
	} else {
		req.Header.Set("Connection", "close")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	watched := newLowSpeedReader(resp.Body, f.cfg.HttpLowSpeedLimitKbps, f.cfg.HttpLowSpeedTime())
	body, err := io.ReadAll(watched)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// lowSpeedReader aborts a read once throughput has stayed below limitKbps
// for window, the Go equivalent of the original implementation's pycurl
// LOW_SPEED_LIMIT/LOW_SPEED_TIME watchdog (§4.7, §5): a stuck or
// crawling transfer is treated as a transport failure instead of tying up
// a file handle indefinitely within the overall client.Timeout deadline.
type lowSpeedReader struct {
	r      io.Reader
	limit  int64 // bytes/sec
	window time.Duration

	since time.Time
	read  int64
}

// newLowSpeedReader returns r unwrapped when limitKbps or window is
// non-positive, since a zero config value means the watchdog is disabled.
func newLowSpeedReader(r io.Reader, limitKbps int64, window time.Duration) io.Reader {
	if limitKbps <= 0 || window <= 0 {
		return r
	}
	return &lowSpeedReader{r: r, limit: limitKbps * 1024, window: window, since: time.Now()}
}

func (w *lowSpeedReader) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	w.read += int64(n)

	if elapsed := time.Since(w.since); elapsed >= w.window {
		if float64(w.read)/elapsed.Seconds() < float64(w.limit) {
			return n, fmt.Errorf("%w: transfer below %d KB/s for %s", vfserr.ErrIO, w.limit/1024, w.window)
		}
		w.since = time.Now()
		w.read = 0
	}
	return n, err
}

func (f *rangeFetcher) legacyClient() *http.Client {
	if f.legacyOnce == nil {
		f.legacyOnce = &http.Client{
			Timeout: f.cfg.HttpTimeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: f.cfg.HttpConnectTimeout(),
				}).DialContext,
				DisableKeepAlives: true,
			},
		}
	}
	return f.legacyOnce
}
