package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/info_api/"):
			fmt.Fprint(w, `{"episodes_count":12}`)
		case strings.HasPrefix(r.URL.Path, "/anime/"):
			fmt.Fprint(w, `<html><body><h1 class="title"> Demon Slayer </h1></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	target, err := newTestClient().ResolveTarget(context.Background(), srv.URL+"/anime/123-demon-slayer")
	require.NoError(t, err)

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, "http", target.Scheme)
	assert.Equal(t, host, target.Host)
	assert.Equal(t, srv.URL+"/info_api/123-demon-slayer", target.APIURL)
	assert.Equal(t, 12, target.EpisodeCount)
	assert.Equal(t, "Demon Slayer", target.Title)
	assert.Equal(t, fmt.Sprintf("http://%s/embed-url/42", host), target.EmbedURL(42))
}

func TestResolveTargetTitleFallsBackToSlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/info_api/") {
			fmt.Fprint(w, `{"episodes_count":3}`)
			return
		}
		// Listing page without the expected title markup.
		fmt.Fprint(w, `<html><body><div>nothing here</div></body></html>`)
	}))
	defer srv.Close()

	target, err := newTestClient().ResolveTarget(context.Background(), srv.URL+"/anime/9-naruto")
	require.NoError(t, err)
	assert.Equal(t, "9-naruto", target.Title)
}

func TestResolveTargetRejectsMalformedURL(t *testing.T) {
	for _, rawURL := range []string{
		"https://host/watch/123-title",
		"https://host/anime/not-numeric",
		"ftp://host/anime/123-title",
		"not a url",
	} {
		_, err := newTestClient().ResolveTarget(context.Background(), rawURL)
		assert.ErrorIs(t, err, ErrBadTargetURL, "url %q", rawURL)
	}
}

func TestResolveTargetMalformedPayloadIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient().ResolveTarget(context.Background(), srv.URL+"/anime/123-test")
	require.ErrorIs(t, err, ErrResolution)
}
