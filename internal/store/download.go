package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"artbatch/internal/errors"
)

// Browsers write downloads through temporary names; those never count as a
// completed download.
var tempSuffixes = []string{".crdownload", ".tmp", ".part"}

const (
	defaultDownloadPoll  = time.Second
	defaultStabilityWait = time.Second
)

// WaitForDownload polls the staging area until a completed download appears,
// returning its path. A download counts as complete when it is the newest
// regular non-temporary file (matching ext, when given) and its size is
// stable across two consecutive checks. Transient scan errors are tolerated
// by retrying the poll; only timeout or context cancellation fail the wait.
func (s *Store) WaitForDownload(ctx context.Context, ext string, timeout time.Duration) (string, error) {
	poll := s.downloadPoll
	if poll <= 0 {
		poll = defaultDownloadPoll
	}
	stability := s.stabilityWait
	if stability <= 0 {
		stability = defaultStabilityWait
	}

	deadline := time.Now().Add(timeout)
	var lastErr error

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := s.newestStagedFile(ext)
		if err != nil {
			lastErr = err
		} else if candidate != "" {
			size1, err1 := fileSize(candidate)
			if err1 == nil && size1 > 0 {
				sleep(ctx, stability)
				size2, err2 := fileSize(candidate)
				if err2 == nil && size1 == size2 {
					s.log.Debug("download complete", "path", candidate, "bytes", size2)
					return candidate, nil
				}
			}
		}

		sleep(ctx, poll)
	}

	timeoutErr := errors.NewTimeoutError("waiting for download", timeout)
	if lastErr != nil {
		return "", timeoutErr.WithCause(lastErr)
	}
	return "", timeoutErr.WithCause(errors.ErrNoDownload)
}

// newestStagedFile returns the most recently modified completed file in
// staging, or "" when none qualifies.
func (s *Store) newestStagedFile(ext string) (string, error) {
	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return "", err
	}

	var newest string
	var newestMod time.Time

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if isTempDownload(name) {
			continue
		}
		if ext != "" && !strings.HasSuffix(name, "."+ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(s.stagingDir, name)
			newestMod = info.ModTime()
		}
	}

	return newest, nil
}

func isTempDownload(name string) bool {
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// sleep pauses for d or until the context is canceled, whichever comes
// first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
