package crosspost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-graph-feed/internal/config"
	"go-graph-feed/internal/feed"
	"go-graph-feed/internal/fetch"
	"go-graph-feed/internal/graph"
	"go-graph-feed/internal/graphtest"
	"go-graph-feed/internal/model"
	"go-graph-feed/internal/store"
)

const rss = `<?xml version="1.0"?><rss version="2.0"><channel>
<title>blog</title><link>/</link>
<item><title>Old</title><link>https://blog.example/old</link><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Newest</title><link>https://blog.example/newest</link><description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description><pubDate>Wed, 04 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Middle</title><link>/middle</link><pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate></item>
</channel></rss>`

const atom = `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom">
<title>site</title><entry><title>Entry</title><id>urn:entry:1</id><updated>2007-01-02T15:04:05Z</updated><link href="https://site.example/entry"/></entry>
</feed>`

type fixture struct {
	graph  *graphtest.Server
	feeds  *httptest.Server
	ledger *store.SQLite
	poster *Poster
}

type stubUnfurl struct{ err error }

func (s stubUnfurl) Fill(_ context.Context, l model.Link) (model.Link, error) {
	if s.err != nil {
		return l, s.err
	}
	if l.Caption == "" {
		l.Caption = "stub caption"
	}
	return l, nil
}

func newFixture(t *testing.T, token string, uf Unfurler) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	})
	mux.HandleFunc("/atom.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atom))
	})
	mux.HandleFunc("/site", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html><html><head>
<link rel="stylesheet" href="/s.css">
<link rel="alternate" type="application/atom+xml" href="/atom.xml">
</head><body>hi</body></html>`))
	})
	feeds := httptest.NewServer(mux)
	t.Cleanup(feeds.Close)

	g := graphtest.NewServer(t)
	cl, err := fetch.New(fetch.Options{Timeout: 3 * time.Second, AccessToken: token})
	require.NoError(t, err)
	tpl := feed.New(cl, graph.New(cl, g.BaseURL(), ""))

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &fixture{graph: g, feeds: feeds, ledger: st, poster: New(cl, tpl, st, uf)}
}

func TestRun_PostsNewestFirstAndSkipsLedger(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx := context.Background()
	src := config.CrosspostFeed{FeedURL: f.feeds.URL + "/rss.xml", Owner: "page", MaxItems: 2}

	res, err := f.poster.Run(ctx, src)
	require.NoError(t, err)
	require.Len(t, res.Posted, 2)
	assert.Equal(t, 0, res.Skipped)

	first, ok := f.graph.Object(res.Posted[0])
	require.True(t, ok)
	assert.Equal(t, "https://blog.example/newest", first["link"])
	assert.Equal(t, "Newest", first["name"])
	assert.Equal(t, "Hello world", first["description"])
	assert.NotContains(t, first, "message")

	second, _ := f.graph.Object(res.Posted[1])
	assert.Equal(t, f.feeds.URL+"/middle", second["link"], "relative item links are resolved")

	req := f.graph.LastRequest()
	assert.Equal(t, "/v2.5/page/feed", req.Path)

	done, err := f.ledger.IsCrossposted(ctx, "https://blog.example/newest", "page")
	require.NoError(t, err)
	assert.True(t, done)

	again, err := f.poster.Run(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, again.Posted)
	assert.Equal(t, 2, again.Skipped)
}

func TestRun_DiscoversFeedFromHTMLAndUnfurls(t *testing.T) {
	f := newFixture(t, "", stubUnfurl{})
	res, err := f.poster.Run(context.Background(), config.CrosspostFeed{FeedURL: f.feeds.URL + "/site"})
	require.NoError(t, err)
	require.Len(t, res.Posted, 1)
	assert.Equal(t, feed.DefaultOwner, res.Owner)

	obj, ok := f.graph.Object(res.Posted[0])
	require.True(t, ok)
	assert.Equal(t, "https://site.example/entry", obj["link"])
	assert.Equal(t, "stub caption", obj["caption"])
}

func TestRun_UnfurlFailureStillPosts(t *testing.T) {
	f := newFixture(t, "", stubUnfurl{err: errors.New("offline")})
	res, err := f.poster.Run(context.Background(), config.CrosspostFeed{FeedURL: f.feeds.URL + "/atom.xml"})
	require.NoError(t, err)
	require.Len(t, res.Posted, 1)
	obj, _ := f.graph.Object(res.Posted[0])
	assert.NotContains(t, obj, "caption")
}

func TestRun_PublishErrorStopsWithoutLedger(t *testing.T) {
	f := newFixture(t, "", nil)
	f.graph.Token = "secret"
	src := config.CrosspostFeed{FeedURL: f.feeds.URL + "/atom.xml", Owner: "page"}
	res, err := f.poster.Run(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrUnauthorized))
	assert.Empty(t, res.Posted)

	done, _ := f.ledger.IsCrossposted(context.Background(), "https://site.example/entry", "page")
	assert.False(t, done)
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, "", nil)
	results := f.poster.RunAll(context.Background(), []config.CrosspostFeed{
		{FeedURL: f.feeds.URL + "/missing.xml"},
		{FeedURL: f.feeds.URL + "/atom.xml"},
	})
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Posted)
	assert.Len(t, results[1].Posted, 1)
}

func TestParseFeed_NoFeedInHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<!doctype html><html><head><title>x</title></head></html>`))
	}))
	defer srv.Close()
	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	_, err = ParseFeed(context.Background(), cl, srv.URL, 0)
	assert.Error(t, err)
}
