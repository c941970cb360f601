// 包 unfurl 负责补全链接帖的预览信息：
// - 抓取链接页面，按 rules.yaml 预设或 Open Graph 标签读取 name/caption/description/picture
// - 选择器支持 "选择器@属性" 以及 "||" 多方案回退，相对 URL 绝对化
// - 结果按 URL 缓存（LRU）
package unfurl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"go-graph-feed/internal/logx"
	"go-graph-feed/internal/model"
	"go-graph-feed/internal/rules"
)

// 未配置预设时使用的 Open Graph 选择器。
var defaultPreview = rules.LinkPreview{
	Name:        "meta[property='og:title']@content||title",
	Caption:     "meta[property='og:site_name']@content",
	Description: "meta[property='og:description']@content||meta[name='description']@content",
	Picture:     "meta[property='og:image']@content||link[rel='image_src']@href",
}

// DefaultCacheSize 为默认缓存条目数。
const DefaultCacheSize = 256

// Getter 为页面抓取能力，由 *fetch.Client 实现。
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Service 补全链接预览，可并发使用。
type Service struct {
	get   Getter
	rules *rules.Rules
	cache *lru.Cache[string, model.Link]
}

// New 创建 Service；rl 可为 nil，size<=0 时使用默认大小。
func New(get Getter, rl *rules.Rules, size int) (*Service, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, model.Link](size)
	if err != nil {
		return nil, fmt.Errorf("new unfurl cache: %w", err)
	}
	return &Service{get: get, rules: rl, cache: c}, nil
}

// Fill 只补全 l 中为空的字段，已有值保持不变。
func (s *Service) Fill(ctx context.Context, l model.Link) (model.Link, error) {
	if strings.TrimSpace(l.Link) == "" {
		return l, errors.New("unfurl: link required")
	}
	if l.Name != "" && l.Caption != "" && l.Description != "" && l.Picture != "" {
		return l, nil
	}
	meta, ok := s.cache.Get(l.Link)
	if !ok {
		var err error
		meta, err = s.lookup(ctx, l.Link)
		if err != nil {
			return l, err
		}
		s.cache.Add(l.Link, meta)
	}
	if l.Name == "" {
		l.Name = meta.Name
	}
	if l.Caption == "" {
		l.Caption = meta.Caption
	}
	if l.Description == "" {
		l.Description = meta.Description
	}
	if l.Picture == "" {
		l.Picture = meta.Picture
	}
	return l, nil
}

func (s *Service) lookup(ctx context.Context, pageURL string) (model.Link, error) {
	resp, err := s.get.Get(ctx, pageURL)
	if err != nil {
		return model.Link{}, fmt.Errorf("GET link page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.Link{}, fmt.Errorf("parse link page html: %w", err)
	}
	host := hostOf(pageURL)
	lp := defaultPreview
	if p, ok := s.rules.ForHost(host); ok && p.LinkPreview != nil {
		lp = merge(*p.LinkPreview, defaultPreview)
	}
	scope := doc.Selection
	meta := model.Link{
		Link:        pageURL,
		Name:        getVal(scope, lp.Name),
		Caption:     getVal(scope, lp.Caption),
		Description: getVal(scope, lp.Description),
		Picture:     abs(pageURL, getVal(scope, lp.Picture)),
	}
	if meta.Caption == "" {
		meta.Caption = host
	}
	logx.Debugf("链接预览：%s 标题=%q", pageURL, meta.Name)
	return meta, nil
}

// merge 将预设选择器放在前面，默认选择器作为回退。
func merge(p, def rules.LinkPreview) rules.LinkPreview {
	join := func(a, b string) string {
		if strings.TrimSpace(a) == "" {
			return b
		}
		return a + "||" + b
	}
	return rules.LinkPreview{
		Name:        join(p.Name, def.Name),
		Caption:     join(p.Caption, def.Caption),
		Description: join(p.Description, def.Description),
		Picture:     join(p.Picture, def.Picture),
	}
}

// getVal 解析表达式并支持使用 "||" 作为回退分隔，例如："h1||title" 或 "meta[name='x']@content||."。
func getVal(scope *goquery.Selection, expr string) string {
	for _, p := range strings.Split(expr, "||") {
		if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
			return v
		}
	}
	return ""
}

// getValSingle 解析单个表达式：文本或 属性 读取。
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.TrimSpace(scope.Text())
	}
	if at := strings.LastIndex(expr, "@"); at != -1 {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		if sel == "" {
			val, _ := scope.Attr(attr)
			return strings.TrimSpace(val)
		}
		val, _ := scope.Find(sel).First().Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(scope.Find(expr).First().Text())
}

// abs 将相对链接转换为绝对 URL。
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Hostname()
	}
	return ""
}
