package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/alvarorichard/aniworld/internal/models"
	"github.com/alvarorichard/aniworld/internal/util"
	"github.com/pkg/errors"
)

// Resolver enumerates episode identifiers through the info API. Requests run
// under a counting semaphore so no more than `workers` are in flight at once.
type Resolver struct {
	client  *Client
	workers int
}

// NewResolver creates a resolver with the given concurrency cap.
func NewResolver(client *Client, workers int) *Resolver {
	return &Resolver{client: client, workers: workers}
}

// Resolve returns the EpisodeRefs for the requested window, ordered by
// ordinal. The window is validated before any request is issued. Ordinals
// whose requests exhaust their retries are logged and skipped; a
// non-transient transport failure cancels the batch and surfaces as
// ErrResolution. A Resolver run is not restartable: retrying wholesale means
// calling Resolve again.
func (r *Resolver) Resolve(ctx context.Context, target *models.Target, start, end int) ([]models.EpisodeRef, error) {
	start, end, err := ValidateRange(start, end, target.EpisodeCount)
	if err != nil {
		return nil, err
	}

	first, last := 1, target.EpisodeCount
	if start != 0 {
		first = start
	}
	if end != 0 {
		last = end
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each worker writes only its own slot; absent slots keep the zero id.
	refs := make([]models.EpisodeRef, last-first+1)
	sem := make(chan struct{}, r.workers)

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		fatal   error
	)

	for num := first; num <= last; num++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			ref, ok, err := r.episodeID(ctx, target, num)
			if err != nil {
				if ctx.Err() == nil {
					errOnce.Do(func() {
						fatal = err
						cancel()
					})
				}
				return
			}
			if !ok {
				util.Warnf("episode %d: no identifier resolved, skipping", num)
				return
			}
			refs[num-first] = ref
		}(num)
	}
	wg.Wait()

	if fatal != nil {
		return nil, errors.Wrapf(ErrResolution, "%v", fatal)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved := refs[:0]
	for _, ref := range refs {
		if ref.ID != 0 {
			resolved = append(resolved, ref)
		}
	}
	return resolved, nil
}

// episodeID fetches the identifier for one ordinal. The API is indexed from
// zero and answers with a one-episode window; the last entry wins. ok=false
// means the slot is absent after retries, err means the batch must abort.
func (r *Resolver) episodeID(ctx context.Context, target *models.Target, num int) (models.EpisodeRef, bool, error) {
	idx := num - 1
	episodeURL := fmt.Sprintf("%s/%d", target.APIURL, idx)
	query := url.Values{
		"start_range": {strconv.Itoa(idx)},
		"end_range":   {strconv.Itoa(idx + 1)},
	}

	resp, err := r.client.getWithRetries(ctx, episodeURL, query)
	if err != nil {
		if errors.Is(err, errAttemptsExhausted) {
			return models.EpisodeRef{}, false, nil
		}
		return models.EpisodeRef{}, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		util.Warnf("episode %d: malformed info payload: %v", num, err)
		return models.EpisodeRef{}, false, nil
	}
	if len(info.Episodes) == 0 {
		return models.EpisodeRef{}, false, nil
	}

	return models.EpisodeRef{
		ID:     info.Episodes[len(info.Episodes)-1].ID,
		Number: num,
	}, true, nil
}
