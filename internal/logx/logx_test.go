package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func capture(t *testing.T, o Options, fn func()) string {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	var buf bytes.Buffer
	o.Output = &buf
	Init(o)
	fn()
	return buf.String()
}

func TestLogx_PrettyZH_Info(t *testing.T) {
	out := capture(t, Options{Level: "debug", Locale: "zh-CN", Color: "never"}, func() {
		Infof("hello %s", "world")
	})
	if !strings.Contains(out, "[信息]") || !strings.Contains(out, "hello world") {
		t.Fatalf("expect zh label [信息], got: %q", out)
	}
}

func TestLogx_LevelFiltering(t *testing.T) {
	out := capture(t, Options{Level: "warn", Locale: "zh-CN", Color: "never"}, func() {
		Infof("should not print")
		Warnf("warn on")
	})
	if strings.Contains(out, "should not print") {
		t.Fatalf("info should be filtered when level=warn")
	}
	if !strings.Contains(out, "[警告]") {
		t.Fatalf("expect warn label present: %q", out)
	}
}

func TestLogx_Off(t *testing.T) {
	out := capture(t, Options{Level: "off"}, func() {
		Errorf("nothing")
	})
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestLogx_EnglishLabelsAndAttrs(t *testing.T) {
	out := capture(t, Options{Level: "info", Locale: "en", Color: "never"}, func() {
		With("owner", "me").WithGroup("page").Info("synced", "posts", 3, "note", "two words")
	})
	for _, want := range []string{"[INFO]", "owner=me", "page.posts=3", `page.note="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestLogx_JSONFormat(t *testing.T) {
	out := capture(t, Options{Level: "info", Format: "json"}, func() {
		Infow("已发布", "id", "me_1")
	})
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err != nil {
		t.Fatalf("not json: %q", out)
	}
	if m["msg"] != "已发布" || m["id"] != "me_1" {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestLogx_ColorAlways(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	out := capture(t, Options{Level: "info", Locale: "en", Color: "always"}, func() {
		Errorf("boom")
	})
	if !strings.Contains(out, "\x1b[31m[ERROR]\x1b[0m") {
		t.Fatalf("expected colored label, got %q", out)
	}
}
