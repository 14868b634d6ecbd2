package crawler

import (
	"context"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvarorichard/aniworld/internal/util"
	"github.com/pkg/errors"
)

// ErrNoDownloadLink marks an embed page with no recognizable download URL.
// Recoverable: the caller skips the episode and moves on.
var ErrNoDownloadLink = errors.New("no download link on embed page")

// downloadURLPattern matches the inline assignment the embed page uses to
// hand its player the source, e.g. window.downloadUrl = 'https://.../ep.mp4'.
var downloadURLPattern = regexp.MustCompile(`window\.downloadUrl\s*=\s*'(https?://[^\s']+)'`)

// ExtractDownloadLink scans script blocks for the download URL assignment and
// returns the first capture. The context string (normally the embed URL) only
// feeds the diagnostic when nothing matches.
func ExtractDownloadLink(scriptBlocks []string, context string) (string, bool) {
	for _, block := range scriptBlocks {
		if m := downloadURLPattern.FindStringSubmatch(block); m != nil {
			return m[1], true
		}
	}
	util.Warnf("no download link found on %s", context)
	return "", false
}

// ScriptBlocks collects the text content of every <script> element.
func ScriptBlocks(doc *goquery.Document) []string {
	var blocks []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return blocks
}

// ResolveDownloadLink fetches an embed page and extracts the final download
// URL from its script content.
func (c *Client) ResolveDownloadLink(ctx context.Context, embedURL string) (string, error) {
	resp, err := c.getWithRetries(ctx, embedURL, nil)
	if err != nil {
		return "", errors.Wrapf(err, "fetch embed page %s", embedURL)
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "parse embed page %s", embedURL)
	}

	link, ok := ExtractDownloadLink(ScriptBlocks(doc), embedURL)
	if !ok {
		return "", errors.Wrap(ErrNoDownloadLink, embedURL)
	}
	return link, nil
}
