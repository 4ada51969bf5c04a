package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vx-run/vx/internal/progress"
	"github.com/vx-run/vx/internal/vxerr"
)

const (
	backoffBase   = time.Second
	backoffFactor = 2
	backoffCap    = 30 * time.Second
	maxRetries    = 5
)

// downloader streams provider-declared URLs to a temp file under
// {vx_home}/tmp/, implementing spec.md §4.4 step 5's retry/backoff and
// retryable-vs-non-retryable classification.
type downloader struct {
	client *http.Client
	tmpDir string
}

func newDownloader(client *http.Client, tmpDir string) *downloader {
	return &downloader{client: client, tmpDir: tmpDir}
}

// httpError carries a response status code so the caller can classify it.
type httpError struct {
	StatusCode int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("download: HTTP %d", e.StatusCode)
}

func retryable(err error) bool {
	var he *httpError
	if ok := asHTTPError(err, &he); ok {
		return he.StatusCode == http.StatusTooManyRequests ||
			he.StatusCode == http.StatusRequestTimeout ||
			he.StatusCode >= 500
	}

	// A local-disk error (creating or writing the temp file) would recur for
	// every URL, so it stops the download.
	var pe *os.PathError
	if errors.As(err, &pe) {
		return false
	}

	// A connection-level error (DNS, dial, TLS, timeout) never produced a
	// response at all; treat it as retryable the way a 5xx is.
	return true
}

func asHTTPError(err error, target **httpError) bool {
	he, ok := err.(*httpError)
	if !ok {
		return false
	}

	*target = he

	return true
}

func backoffTriggering(err error) bool {
	var he *httpError
	if ok := asHTTPError(err, &he); ok {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode == http.StatusRequestTimeout
	}

	return false
}

// download fetches url into a fresh temp file and returns its path. It
// retries 429/408 responses with bounded exponential backoff and jitter;
// any other error is returned immediately for the caller to classify as
// fallback-eligible or fatal.
func (d *downloader) download(ctx context.Context, url, label string, reporter progress.Reporter) (string, error) {
	destPath := fmtTmpPath(d.tmpDir, label)

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		err := d.attempt(ctx, url, destPath, label, reporter)
		if err == nil {
			return destPath, nil
		}

		lastErr = err

		if !backoffTriggering(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("download: exhausted %d retries: %w", maxRetries, lastErr)
}

func (d *downloader) attempt(ctx context.Context, url, destPath, label string, reporter progress.Reporter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err // connection-level failure; retryable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &httpError{StatusCode: resp.StatusCode}
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return vxerr.New(vxerr.DownloadFailed, "install.download", err).WithPath(destPath)
	}
	defer f.Close()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var downloaded int64

	buf := make([]byte, 256*1024)
	lastReport := time.Now()

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return vxerr.New(vxerr.DownloadFailed, "install.download", writeErr).WithPath(destPath)
			}

			downloaded += int64(n)

			if reporter != nil && time.Since(lastReport) > 100*time.Millisecond {
				lastReport = time.Now()
				reporter.Report(progress.Event{Label: label, DownloadedBytes: downloaded, TotalBytes: total})
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}

			return vxerr.New(vxerr.DownloadFailed, "install.download", readErr).WithPath(url)
		}
	}

	if reporter != nil {
		reporter.Report(progress.Event{Label: label, DownloadedBytes: downloaded, TotalBytes: total, Done: true})
	}

	return nil
}

// backoffDelay computes the bounded exponential backoff with jitter spec.md
// §4.4 step 5 specifies: base 1s, factor 2, jitter ±20%, cap 30s.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase

	for i := 1; i < attempt; i++ {
		d *= backoffFactor
		if d > backoffCap {
			d = backoffCap
			break
		}
	}

	jitter := 1 + (rand.Float64()*0.4 - 0.2) //nolint:gosec // timing jitter, not security-sensitive
	scaled := time.Duration(float64(d) * jitter)

	if scaled > backoffCap {
		scaled = backoffCap
	}

	return scaled
}

func fmtTmpPath(tmpDir, label string) string {
	return tmpDir + string(os.PathSeparator) + label + "-" + uuid.NewString()
}
