package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRules_GetPreset(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"Default": {LinkPreview: &LinkPreview{Name: ".i"}},
		"blog":    {LinkPreview: &LinkPreview{Name: ".c"}},
	}}
	p, ok := r.GetPreset("DEFAULT")
	if !ok || p.LinkPreview.Name != ".i" {
		t.Fatalf("case-insensitive lookup failed: %+v", p)
	}
	p, ok = r.GetPreset("missing")
	if ok {
		t.Fatalf("no lowercase default, expected miss: %+v", p)
	}
}

func TestRules_LoadAndForHost(t *testing.T) {
	f := filepath.Join(t.TempDir(), "rules.yaml")
	body := `default:
  link_preview:
    name: "meta[property='og:title']@content"
medium:
  hosts: ["medium.com"]
  link_preview:
    name: "h1"
    description: "h2.subtitle||meta[name='description']@content"
`
	if err := os.WriteFile(f, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p, ok := r.ForHost("medium.com"); !ok || p.LinkPreview.Name != "h1" {
		t.Fatalf("exact host: %+v", p)
	}
	if p, ok := r.ForHost("blog.medium.com"); !ok || p.LinkPreview.Name != "h1" {
		t.Fatalf("subdomain host: %+v", p)
	}
	if p, ok := r.ForHost("www.example.org"); !ok || p.LinkPreview.Name == "h1" {
		t.Fatalf("expected default preset: %+v", p)
	}
	var nilRules *Rules
	if _, ok := nilRules.ForHost("x"); ok {
		t.Fatal("nil rules should not match")
	}
}

func TestRules_LoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
