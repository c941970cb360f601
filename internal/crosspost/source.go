package crosspost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"go-graph-feed/internal/logx"
)

// 订阅与页面读取上限。
const maxFeedBody = 4 << 20

// 摘要最大字符数。
const maxSummary = 300

// Getter 为抓取能力，由 *fetch.Client 实现。
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Item 为解析后的订阅条目。
type Item struct {
	Key       string // 去重键：优先链接，其次 GUID
	Title     string
	Link      string
	Summary   string
	Image     string
	Published time.Time
}

// ParseFeed 从订阅地址解析条目，按发布时间倒序，最多返回 max 条（0 表示不限制）。
// 若地址返回的是 HTML 页面，则按 <link rel="alternate"> 发现订阅后再解析。
func ParseFeed(ctx context.Context, get Getter, feedURL string, max int) ([]Item, error) {
	body, err := fetchBody(ctx, get, feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	if !looksLikeFeed(body) {
		alt, err := discover(feedURL, body)
		if err != nil {
			return nil, err
		}
		logx.Debugf("从 <link> 发现订阅：%s", alt)
		if body, err = fetchBody(ctx, get, alt); err != nil {
			return nil, fmt.Errorf("GET feed %s: %w", alt, err)
		}
		feedURL = alt
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := Item{
			Title:     strings.TrimSpace(it.Title),
			Link:      joinURL(feedURL, strings.TrimSpace(it.Link)),
			Summary:   plainText(pick(it.Description, it.Content)),
			Published: pickTime(it.PublishedParsed, it.UpdatedParsed),
		}
		if it.Image != nil {
			item.Image = joinURL(feedURL, it.Image.URL)
		}
		item.Key = item.Link
		if item.Key == "" {
			item.Key = strings.TrimSpace(it.GUID)
		}
		if item.Key == "" {
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Published.After(items[j].Published) })
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items, nil
}

func fetchBody(ctx context.Context, get Getter, u string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()
	resp, err := get.Get(reqCtx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
}

// looksLikeFeed 按内容粗略嗅探 RSS/Atom/RDF/JSON Feed 标记。
func looksLikeFeed(body []byte) bool {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	lb := bytes.ToLower(head)
	for _, m := range []string{"<rss", "<feed", "<rdf", "jsonfeed.org/version"} {
		if bytes.Contains(lb, []byte(m)) {
			return true
		}
	}
	return false
}

// discover 解析 HTML 中 rel=alternate 的订阅声明。
func discover(pageURL string, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var found string
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		t, _ := s.Attr("type")
		href, _ := s.Attr("href")
		lt := strings.ToLower(t)
		if strings.Contains(strings.ToLower(rel), "alternate") && href != "" &&
			(strings.Contains(lt, "rss") || strings.Contains(lt, "atom") || strings.Contains(lt, "json")) {
			found = joinURL(pageURL, href)
			return false
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("no feed discovered for %s", pageURL)
	}
	return found, nil
}

// plainText 去掉摘要中的 HTML 并截断。
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		s = doc.Text()
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxSummary {
		r := []rune(s)
		s = string(r[:maxSummary-1]) + "…"
	}
	return s
}

func pick(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return time.Time{}
}

// joinURL 将相对路径解析为绝对 URL。
func joinURL(base, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.ResolveReference(ru).String()
}
