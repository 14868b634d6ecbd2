package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/aniworld/internal/models"
)

func TestChunkSize(t *testing.T) {
	tests := []struct {
		fileSize int64
		want     int64
	}{
		{10 * mb, 256 * kb},
		{-1, 256 * kb}, // unknown content length
		{50 * mb, 512 * kb},
		{75 * mb, 512 * kb},
		{100 * mb, 2 * mb},
		{150 * mb, 2 * mb},
		{250 * mb, 4 * mb},
		{300 * mb, 4 * mb},
	}
	for _, tc := range tests {
		if got := ChunkSize(tc.fileSize); got != tc.want {
			t.Errorf("ChunkSize(%d) = %d, want %d", tc.fileSize, got, tc.want)
		}
	}
}

func TestEpisodeFilename(t *testing.T) {
	tests := []struct {
		link, want string
	}{
		{"https://host/dl?token=abc%20def.mp4", "abcdef.mp4"},
		{"https://host/dl?file=Episode%2001.mp4", "Episode01.mp4"},
		{"https://host/dl?file=one_piece-1080.mkv", "one_piece-1080.mkv"},
		{"https://host/dl?a=1&file=ep%2F..%2Fx.mp4", "ep..x.mp4"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := EpisodeFilename(tc.link); got != tc.want {
			t.Errorf("EpisodeFilename(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}

// stubResolver maps embed URLs straight to download links, standing in for
// the embed-page fetch.
type stubResolver struct {
	links map[string]string
}

func (s *stubResolver) ResolveDownloadLink(_ context.Context, embedURL string) (string, error) {
	link, ok := s.links[embedURL]
	if !ok {
		return "", fmt.Errorf("no download link on embed page %s", embedURL)
	}
	return link, nil
}

func newTestManager(resolver LinkResolver) *Manager {
	m := NewManager(resolver, &http.Client{Timeout: 5 * time.Second}, map[string]string{"User-Agent": "test"}, 2)
	m.backoff = func(int) time.Duration { return 0 }
	return m
}

func TestRunDownloadsAndContinuesPastFailures(t *testing.T) {
	const payload = "episode-bytes"

	badHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			badHits++
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	// embed-3 is deliberately unknown to the resolver: no link on that page.
	resolver := &stubResolver{links: map[string]string{
		"embed-1": srv.URL + "/bad?file=ep01.mp4",
		"embed-2": srv.URL + "/dl?file=ep02.mp4",
	}}

	destDir := t.TempDir()
	tracker := NewTracker(3)

	tasks := newTestManager(resolver).Run(context.Background(),
		[]string{"embed-1", "embed-2", "embed-3"}, destDir, tracker)
	require.Len(t, tasks, 3)

	assert.Equal(t, models.StatusFailed, tasks[0].Status)
	assert.Equal(t, maxDownloadAttempts, tasks[0].Attempts)
	assert.Equal(t, maxDownloadAttempts, badHits)
	assert.NoFileExists(t, filepath.Join(destDir, "ep01.mp4"),
		"a failed download must not leave a partial file behind")

	assert.Equal(t, models.StatusSucceeded, tasks[1].Status)
	data, err := os.ReadFile(filepath.Join(destDir, "ep02.mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	assert.Equal(t, models.StatusFailed, tasks[2].Status)
	assert.Zero(t, tasks[2].Attempts, "extraction failures skip the item without streaming attempts")

	snap := tracker.Snapshot()
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 3, snap.Total)
	assert.Empty(t, snap.Tasks, "finished tasks are hidden again")
}

func TestRunCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("never delivered"))
	}))
	defer srv.Close()

	resolver := &stubResolver{links: map[string]string{
		"embed-1": srv.URL + "/dl?file=ep01.mp4",
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := newTestManager(resolver).Run(ctx, []string{"embed-1"}, t.TempDir(), NewTracker(1))
	require.Len(t, tasks, 1)
	assert.NotEqual(t, models.StatusSucceeded, tasks[0].Status,
		"an aborted download must never be marked succeeded")
}

func TestRunReportsProgressPerChunk(t *testing.T) {
	payload := make([]byte, 64*kb)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	resolver := &stubResolver{links: map[string]string{
		"embed-1": srv.URL + "/dl?file=big.mp4",
	}}

	tracker := NewTracker(1)
	tasks := newTestManager(resolver).Run(context.Background(), []string{"embed-1"}, t.TempDir(), tracker)
	require.Equal(t, models.StatusSucceeded, tasks[0].Status)

	snap := tracker.Snapshot()
	assert.Equal(t, uint64(len(payload)), snap.Bytes)
	assert.Equal(t, 1, snap.Completed)
}
