package unfurl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-graph-feed/internal/fetch"
	"go-graph-feed/internal/model"
	"go-graph-feed/internal/rules"
)

const ogPage = `<!doctype html><html><head>
<title>Fallback Title</title>
<meta property="og:title" content="OG Title">
<meta property="og:site_name" content="Example Blog">
<meta property="og:description" content="A short summary.">
<meta property="og:image" content="/img/cover.png">
</head><body><h1 class="headline">Headline</h1></body></html>`

const plainPage = `<!doctype html><html><head>
<title> Plain Title </title>
<meta name="description" content="Plain description">
</head><body></body></html>`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/og", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(ogPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(plainPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, rl *rules.Rules) *Service {
	t.Helper()
	cl, err := fetch.New(fetch.Options{Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("fetch client: %v", err)
	}
	s, err := New(cl, rl, 8)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return s
}

func TestFill_OpenGraphAndCache(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	s := newService(t, nil)

	got, err := s.Fill(context.Background(), model.Link{Link: srv.URL + "/og"})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got.Name != "OG Title" || got.Caption != "Example Blog" || got.Description != "A short summary." {
		t.Fatalf("unexpected link: %+v", got)
	}
	if got.Picture != srv.URL+"/img/cover.png" {
		t.Fatalf("picture not absolute: %q", got.Picture)
	}

	// 已有字段保持不变，第二次命中缓存
	got, err = s.Fill(context.Background(), model.Link{Link: srv.URL + "/og", Name: "Mine"})
	if err != nil {
		t.Fatalf("fill again: %v", err)
	}
	if got.Name != "Mine" || got.Description != "A short summary." {
		t.Fatalf("existing field overwritten: %+v", got)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("page fetched %d times, want 1", n)
	}
}

func TestFill_FallbacksWithoutOpenGraph(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	s := newService(t, nil)

	got, err := s.Fill(context.Background(), model.Link{Link: srv.URL + "/plain"})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got.Name != "Plain Title" || got.Description != "Plain description" {
		t.Fatalf("unexpected link: %+v", got)
	}
	// 无 og:site_name 时以域名作为 caption
	if got.Caption != "127.0.0.1" {
		t.Fatalf("caption=%q want host", got.Caption)
	}
	if got.Picture != "" {
		t.Fatalf("picture=%q want empty", got.Picture)
	}
}

func TestFill_HostPresetFirst(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	rl := &rules.Rules{Presets: map[string]rules.Preset{
		"local": {Hosts: []string{"127.0.0.1"}, LinkPreview: &rules.LinkPreview{Name: "h1.headline"}},
	}}
	s := newService(t, rl)

	got, err := s.Fill(context.Background(), model.Link{Link: srv.URL + "/og"})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got.Name != "Headline" {
		t.Fatalf("preset selector not used: %q", got.Name)
	}
	// 预设未覆盖的字段仍走 Open Graph
	if got.Description != "A short summary." {
		t.Fatalf("default fallback missing: %+v", got)
	}
}

func TestFill_Errors(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	s := newService(t, nil)
	if _, err := s.Fill(context.Background(), model.Link{}); err == nil {
		t.Fatal("expected error for empty link")
	}
	l := model.Link{Link: srv.URL + "/missing"}
	got, err := s.Fill(context.Background(), l)
	if err == nil {
		t.Fatal("expected error for 404 page")
	}
	if got != l {
		t.Fatalf("link should be returned unchanged on error: %+v", got)
	}
}
