package downloader

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alvarorichard/aniworld/internal/models"
	"github.com/alvarorichard/aniworld/internal/util"
	"github.com/pkg/errors"
)

const (
	// maxDownloadAttempts bounds the streaming retries for one episode.
	maxDownloadAttempts = 4

	// retryBaseDelay is the linear backoff unit between attempts.
	retryBaseDelay = 2 * time.Second
)

const (
	kb = 1 << 10
	mb = 1 << 20
)

// LinkResolver turns an embed page URL into a direct download link. The
// matching rule lives behind this interface so it can be swapped without
// touching the download pipeline.
type LinkResolver interface {
	ResolveDownloadLink(ctx context.Context, embedURL string) (string, error)
}

// ChunkSize picks the copy granularity for a transfer of the given size.
// Small files keep fine-grained progress updates; large ones amortize
// per-chunk overhead. Unknown sizes (-1) fall into the smallest bracket.
func ChunkSize(fileSize int64) int64 {
	switch {
	case fileSize < 50*mb:
		return 256 * kb
	case fileSize < 100*mb:
		return 512 * kb
	case fileSize < 250*mb:
		return 2 * mb
	default:
		return 4 * mb
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// EpisodeFilename derives a filesystem-safe name from a download link: the
// last '='-delimited segment, percent-decoded, restricted to [A-Za-z0-9_.-].
// The result is deterministic, so destination paths stay unique per run.
func EpisodeFilename(downloadLink string) string {
	if downloadLink == "" {
		return ""
	}
	parts := strings.Split(downloadLink, "=")
	name := parts[len(parts)-1]
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

// Manager drives bounded-concurrency episode downloads: for each embed URL it
// resolves the direct link, then streams the file with retry and linear
// backoff. A failed episode never aborts the batch.
type Manager struct {
	resolver LinkResolver
	client   *http.Client
	headers  map[string]string
	workers  int

	// backoff is swapped out in tests to avoid real sleeps.
	backoff func(attempt int) time.Duration
}

// NewManager creates a download manager. The client should have no overall
// request deadline; transfers routinely run for minutes.
func NewManager(resolver LinkResolver, client *http.Client, headers map[string]string, workers int) *Manager {
	return &Manager{
		resolver: resolver,
		client:   client,
		headers:  headers,
		workers:  workers,
		backoff:  downloadBackoff,
	}
}

// downloadBackoff grows linearly with the attempt number, plus up to one
// second of jitter. Downloads are long-running, so a patient ramp avoids
// hammering a struggling origin.
func downloadBackoff(attempt int) time.Duration {
	jitter := time.Duration(rand.Float64() * float64(time.Second))
	return time.Duration(attempt)*retryBaseDelay + jitter
}

// Run downloads every embed URL into destDir, reporting into tracker. The
// destination directory must already exist. Completion order across episodes
// is unspecified. The returned tasks are indexed like embedURLs.
func (m *Manager) Run(ctx context.Context, embedURLs []string, destDir string, tracker *Tracker) []models.DownloadTask {
	pool := util.NewWorkerPool(m.workers)
	tasks := make([]models.DownloadTask, len(embedURLs))

	for i, embedURL := range embedURLs {
		i, embedURL := i, embedURL
		handle := tracker.NewTask(fmt.Sprintf("Episode %d/%d", i+1, len(embedURLs)))
		pool.Submit(func() {
			tasks[i] = m.download(ctx, embedURL, destDir, tracker, handle)
		})
	}
	pool.Wait()

	return tasks
}

// download processes one episode end to end. Every failure path marks the
// task Failed and returns; nothing propagates out of the worker.
func (m *Manager) download(ctx context.Context, embedURL, destDir string, tracker *Tracker, handle Handle) models.DownloadTask {
	task := models.DownloadTask{Status: models.StatusPending}
	if ctx.Err() != nil {
		task.Status = models.StatusFailed
		return task
	}

	link, err := m.resolver.ResolveDownloadLink(ctx, embedURL)
	if err != nil {
		util.Warnf("skipping %s: %v", embedURL, err)
		task.Status = models.StatusFailed
		tracker.Fail(handle)
		return task
	}

	task.SourceURL = link
	task.DestPath = filepath.Join(destDir, EpisodeFilename(link))
	task.Status = models.StatusInProgress
	tracker.Begin(handle)

	for attempt := 1; attempt <= maxDownloadAttempts; attempt++ {
		task.Attempts = attempt
		err = m.fetchToFile(ctx, &task, tracker, handle)
		if err == nil {
			task.Status = models.StatusSucceeded
			tracker.Complete(handle)
			return task
		}
		if ctx.Err() != nil {
			break
		}
		util.Warnf("download failed (attempt %d/%d) for %s: %v", attempt, maxDownloadAttempts, task.DestPath, err)
		if attempt < maxDownloadAttempts {
			sleepContext(ctx, m.backoff(attempt))
		}
	}

	task.Status = models.StatusFailed
	tracker.Fail(handle)
	return task
}

// fetchToFile streams one attempt to disk. The chunk size adapts to the
// advertised content length. On any error the partial file is removed so an
// aborted transfer can never pass for a completed episode.
func (m *Manager) fetchToFile(ctx context.Context, task *models.DownloadTask, tracker *Tracker, handle Handle) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.SourceURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	for key, value := range m.headers {
		req.Header.Set(key, value)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "start download")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(task.DestPath)
	if err != nil {
		return errors.Wrap(err, "create file")
	}

	discard := func(reason error) error {
		_ = out.Close()
		_ = os.Remove(task.DestPath)
		return reason
	}

	size := resp.ContentLength
	buf := make([]byte, ChunkSize(size))
	var received int64

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return discard(errors.Wrap(writeErr, "write file"))
			}
			received += int64(n)
			tracker.AddBytes(int64(n))
			if size > 0 {
				tracker.Update(handle, float64(received)/float64(size)*100)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return discard(errors.Wrap(readErr, "read response"))
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(task.DestPath)
		return errors.Wrap(err, "close file")
	}
	return nil
}

// sleepContext waits out the backoff delay unless the run is canceled first.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
