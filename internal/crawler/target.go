package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvarorichard/aniworld/internal/models"
	"github.com/alvarorichard/aniworld/internal/util"
	"github.com/pkg/errors"
)

// ErrBadTargetURL marks a listing URL that does not match the expected
// /anime/{id-slug} shape.
var ErrBadTargetURL = errors.New("unrecognized listing URL")

// listingURLPattern captures scheme, host and the {numeric id}-{slug} segment
// of a listing page URL.
var listingURLPattern = regexp.MustCompile(`^(https?)://([^/]+)/anime/(\d+-[^/?#]+)`)

// infoResponse mirrors the payload of the info API. The base call carries the
// total count; per-ordinal calls carry a window of the episodes array. Only
// the id is read from each entry; the ordinal is already known to the caller.
type infoResponse struct {
	EpisodesCount int `json:"episodes_count"`
	Episodes      []struct {
		ID int `json:"id"`
	} `json:"episodes"`
}

// ResolveTarget validates the listing URL, derives the info API endpoint by
// the fixed /anime/ -> /info_api/ path rewrite, and fetches the total episode
// count plus the series title. Any failure here is fatal for the run.
func (c *Client) ResolveTarget(ctx context.Context, rawURL string) (*models.Target, error) {
	m := listingURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return nil, errors.Wrap(ErrBadTargetURL, rawURL)
	}
	scheme, host, slug := m[1], m[2], m[3]
	apiURL := fmt.Sprintf("%s://%s/info_api/%s", scheme, host, slug)

	resp, err := c.getWithRetries(ctx, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrResolution, "info API %s: %v", apiURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrapf(ErrResolution, "malformed info API payload from %s: %v", apiURL, err)
	}

	title := c.fetchTitle(ctx, m[0])
	if title == "" {
		// The slug still gives a stable, human-readable directory name.
		title = slug
	}

	return &models.Target{
		Scheme:       scheme,
		Host:         host,
		APIURL:       apiURL,
		Title:        title,
		EpisodeCount: info.EpisodesCount,
	}, nil
}

// fetchTitle scrapes the series title from the listing page's h1.title
// element. A miss is not fatal; the caller falls back to the URL slug.
func (c *Client) fetchTitle(ctx context.Context, pageURL string) string {
	resp, err := c.getWithRetries(ctx, pageURL, nil)
	if err != nil {
		util.Warnf("could not fetch listing page for title: %v", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		util.Warnf("could not parse listing page: %v", err)
		return ""
	}
	return strings.TrimSpace(doc.Find("h1.title").First().Text())
}
