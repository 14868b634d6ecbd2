// Package models contains the data structures shared across the download pipeline.
package models

import "fmt"

// Target describes a resolved listing page: the host serving the episodes and
// the info API endpoint derived from it. Built once per run, never mutated.
type Target struct {
	Scheme       string
	Host         string
	APIURL       string
	Title        string
	EpisodeCount int
}

// EmbedURL returns the intermediate embed page for an episode id. The embed
// page's script content carries the final download link.
func (t *Target) EmbedURL(episodeID int) string {
	return fmt.Sprintf("%s://%s/embed-url/%d", t.Scheme, t.Host, episodeID)
}

// EpisodeRef pairs an opaque episode id with its ordinal number on the site.
// It only lives long enough to derive the embed URL.
type EpisodeRef struct {
	ID     int
	Number int
}

// TaskStatus tracks the lifecycle of a single episode download.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusInProgress
	StatusSucceeded
	StatusFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DownloadTask records one episode download. Each task is owned by exactly
// one worker; only Attempts and Status change after creation.
type DownloadTask struct {
	SourceURL string
	DestPath  string
	Attempts  int
	Status    TaskStatus
}
