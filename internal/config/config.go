// Package config consolidates the tunables for the crawler and downloader so
// they can be threaded explicitly through constructors instead of living in
// process-wide state.
package config

import (
	"math/rand"
	"time"
)

const (
	// DefaultResolveWorkers caps concurrent info-API requests. Resolution is
	// many short request/response exchanges, so it runs wider than downloads.
	DefaultResolveWorkers = 8

	// DefaultDownloadWorkers caps concurrent streaming downloads, which are
	// bandwidth-bound rather than latency-bound.
	DefaultDownloadWorkers = 3

	// DefaultRequestTimeout bounds every API and embed-page request.
	// Streaming downloads use their own client without an overall deadline.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultDownloadRoot is where per-series directories are created.
	DefaultDownloadRoot = "Downloads"
)

// Config carries every tunable the pipeline needs.
type Config struct {
	MaxResolveWorkers  int
	MaxDownloadWorkers int
	RequestTimeout     time.Duration
	DownloadRoot       string
	Headers            map[string]string
}

// userAgents is a small pool of current browser identifiers; one is picked
// per run so repeated batches do not present an identical fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.5; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// Default returns a Config with the stock worker caps and a randomized
// User-Agent header attached to every outbound request.
func Default() Config {
	return Config{
		MaxResolveWorkers:  DefaultResolveWorkers,
		MaxDownloadWorkers: DefaultDownloadWorkers,
		RequestTimeout:     DefaultRequestTimeout,
		DownloadRoot:       DefaultDownloadRoot,
		Headers: map[string]string{
			"User-Agent": userAgents[rand.Intn(len(userAgents))],
		},
	}
}
