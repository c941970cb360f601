// 包 crosspost 负责把 RSS/Atom/JSON Feed 的新条目转发为链接帖：
// - ParseFeed：使用 gofeed 解析订阅（HTML 页面则先发现订阅地址）
// - Poster.Run：跳过台账中已转发的条目，逐条 PostLinkTo 并记录返回的 id
package crosspost

import (
	"context"
	"fmt"

	"go-graph-feed/internal/config"
	"go-graph-feed/internal/feed"
	"go-graph-feed/internal/logx"
	"go-graph-feed/internal/model"
)

// Publisher 为发布链接帖的能力，由 *feed.Template 实现。
type Publisher interface {
	PostLinkTo(ctx context.Context, ownerID, message string, link model.Link) (string, error)
}

// Ledger 为转发台账，由 *store.SQLite 实现。
type Ledger interface {
	IsCrossposted(ctx context.Context, itemKey, owner string) (bool, error)
	MarkCrossposted(ctx context.Context, itemKey, owner, postID string) error
}

// Unfurler 补全链接预览，由 *unfurl.Service 实现。
type Unfurler interface {
	Fill(ctx context.Context, l model.Link) (model.Link, error)
}

var _ Publisher = (*feed.Template)(nil)

// Result 为一次转发的结果。
type Result struct {
	FeedURL string
	Owner   string
	Posted  []string // 新发布的帖子 id
	Skipped int      // 台账中已存在的条目数
}

// Poster 转发执行器。
type Poster struct {
	get    Getter
	pub    Publisher
	ledger Ledger
	unfurl Unfurler
}

// New 创建 Poster；uf 可为 nil（不补全预览）。
func New(get Getter, pub Publisher, ledger Ledger, uf Unfurler) *Poster {
	return &Poster{get: get, pub: pub, ledger: ledger, unfurl: uf}
}

// Run 转发一个订阅来源。发布失败时立即返回，已发布的条目保留在台账中。
func (p *Poster) Run(ctx context.Context, src config.CrosspostFeed) (Result, error) {
	owner := src.Owner
	if owner == "" {
		owner = feed.DefaultOwner
	}
	res := Result{FeedURL: src.FeedURL, Owner: owner}
	items, err := ParseFeed(ctx, p.get, src.FeedURL, src.MaxItems)
	if err != nil {
		return res, err
	}
	log := logx.With("feed", src.FeedURL, "owner", owner)
	for _, it := range items {
		done, err := p.ledger.IsCrossposted(ctx, it.Key, owner)
		if err != nil {
			return res, err
		}
		if done {
			res.Skipped++
			continue
		}
		link := model.Link{Link: it.Link, Name: it.Title, Description: it.Summary, Picture: it.Image}
		if p.unfurl != nil && link.Link != "" {
			if filled, err := p.unfurl.Fill(ctx, link); err != nil {
				log.Warn("链接预览失败", "link", link.Link, "error", err)
			} else {
				link = filled
			}
		}
		id, err := p.pub.PostLinkTo(ctx, owner, "", link)
		if err != nil {
			return res, fmt.Errorf("crosspost %s: %w", it.Key, err)
		}
		if err := p.ledger.MarkCrossposted(ctx, it.Key, owner, id); err != nil {
			return res, err
		}
		res.Posted = append(res.Posted, id)
		log.Info("已转发", "link", it.Link, "id", id)
	}
	return res, nil
}

// RunAll 依次转发所有来源；单个来源失败只记录，继续处理其余来源。
func (p *Poster) RunAll(ctx context.Context, sources []config.CrosspostFeed) []Result {
	out := make([]Result, 0, len(sources))
	for _, src := range sources {
		res, err := p.Run(ctx, src)
		if err != nil {
			logx.Warnf("转发失败：%s 错误=%v", src.FeedURL, err)
		}
		out = append(out, res)
		if ctx.Err() != nil {
			break
		}
	}
	return out
}
