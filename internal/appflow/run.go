// Package appflow composes the crawler and downloader into the end-to-end
// pipeline: listing URL -> target -> episode ids -> embed URLs -> files.
package appflow

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/alvarorichard/aniworld/internal/config"
	"github.com/alvarorichard/aniworld/internal/crawler"
	"github.com/alvarorichard/aniworld/internal/downloader"
	"github.com/alvarorichard/aniworld/internal/models"
	"github.com/alvarorichard/aniworld/internal/util"
)

// Options carries one run's inputs. Start and End of zero mean the window is
// unbounded on that side.
type Options struct {
	URL   string
	Start int
	End   int
}

// Run drives the full pipeline for one listing URL. Validation, resolution
// and directory-setup failures are fatal and returned; per-episode download
// or extraction failures are logged inside the workers and the run completes
// partially.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	client := crawler.NewClient(util.NewAPIClient(cfg.RequestTimeout), cfg.Headers)

	target, err := client.ResolveTarget(ctx, opts.URL)
	if err != nil {
		return err
	}
	util.Infof("resolved %q: %d episode(s) on %s", target.Title, target.EpisodeCount, target.Host)

	resolver := crawler.NewResolver(client, cfg.MaxResolveWorkers)
	refs, err := resolver.Resolve(ctx, target, opts.Start, opts.End)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errors.Errorf("no episodes resolved for %s", opts.URL)
	}
	util.Debugf("resolved %d episode id(s)", len(refs))

	embedURLs := make([]string, len(refs))
	for i, ref := range refs {
		embedURLs[i] = target.EmbedURL(ref.ID)
	}

	destDir := filepath.Join(cfg.DownloadRoot, util.SanitizeDirName(target.Title))
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return errors.Wrap(err, "create download directory")
	}

	tracker := downloader.NewTracker(len(embedURLs))
	program := tea.NewProgram(downloader.NewModel(target.Title, tracker))
	manager := downloader.NewManager(client, util.NewStreamClient(), cfg.Headers, cfg.MaxDownloadWorkers)

	done := make(chan []models.DownloadTask, 1)
	go func() {
		tasks := manager.Run(ctx, embedURLs, destDir, tracker)
		program.Send(downloader.Done())
		done <- tasks
	}()

	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, "progress display")
	}
	tasks := <-done

	failed := 0
	for _, task := range tasks {
		if task.Status != models.StatusSucceeded {
			failed++
		}
	}
	if failed > 0 {
		util.Warnf("%d of %d episode(s) failed, see warnings above", failed, len(tasks))
	}
	util.Infof("saved %d episode(s) to %s", len(tasks)-failed, destDir)
	return nil
}
