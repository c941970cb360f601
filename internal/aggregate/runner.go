// 包 aggregate 负责归档同步的编排：
// - 按 SYNC 配置并发读取各来源的连接
// - 沿 next 游标翻页，直到没有下一页或达到 max_pages
// - 落库并记录每次同步；极简模式仅收集到内存
package aggregate

import (
	"context"
	"fmt"
	"sync"

	"go-graph-feed/internal/config"
	"go-graph-feed/internal/feed"
	"go-graph-feed/internal/logx"
	"go-graph-feed/internal/model"
)

// Reader 为分页读取能力，由 *feed.Template 实现。
type Reader interface {
	Read(ctx context.Context, conn feed.Connection, q feed.Query) (*model.Page[model.Post], error)
}

// Archive 为同步所需的存储能力，由 *store.SQLite 实现。
type Archive interface {
	UpsertPost(ctx context.Context, p model.ArchivedPost) error
	BeginRun(ctx context.Context, owner, connection string) (string, error)
	FinishRun(ctx context.Context, id string, pages, posts int, runErr error) error
	CleanOldPosts(ctx context.Context, days int) (int64, error)
}

var _ Reader = (*feed.Template)(nil)

// Result 为单个来源的同步结果。
type Result struct {
	Source config.SyncSource
	RunID  string
	Pages  int
	Posts  int
	Err    error
}

// Runner 同步执行器，持有配置/读取器/存储。
type Runner struct {
	cfg    *config.Config
	reader Reader
	store  Archive
	// 简洁模式：仅收集内存数据，不落库
	buf *SimpleBuffer
}

// New 创建 Runner；简洁模式下 st 可为 nil。
func New(cfg *config.Config, st Archive, rd Reader) *Runner {
	r := &Runner{cfg: cfg, store: st, reader: rd}
	if cfg.SimpleMode || st == nil {
		r.buf = NewSimpleBuffer()
	}
	return r
}

// Run 执行一轮同步：并发处理所有来源，再清理过期帖子。
// 单个来源失败只记录，不影响其他来源；仅在 ctx 取消时返回错误。
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	sources := r.cfg.Sync
	if len(sources) == 0 {
		logx.Warnf("没有配置任何同步来源（SYNC）")
		return nil, nil
	}
	logx.Infof("开始同步：来源=%d 并发=%d", len(sources), max(1, r.cfg.Concurrency.Fetch))

	results := make([]Result, len(sources))
	sem := make(chan struct{}, max(1, r.cfg.Concurrency.Fetch))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, src config.SyncSource) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.syncSource(ctx, src)
		}(i, src)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}

	// 正常模式才清理数据库中过期帖子；极简模式不使用数据库
	if r.buf == nil && r.cfg.OutdateClean > 0 {
		n, err := r.store.CleanOldPosts(ctx, r.cfg.OutdateClean)
		if err != nil {
			logx.Warnf("清理过期帖子失败：%v", err)
		} else if n > 0 {
			logx.Infof("已清理过期帖子：%d", n)
		}
	}
	return results, nil
}

// syncSource 处理单个来源：翻页读取→写库→记录同步。
func (r *Runner) syncSource(ctx context.Context, src config.SyncSource) Result {
	res := Result{Source: src}
	log := logx.With("owner", src.Owner, "connection", src.Connection)

	conn, err := feed.ParseConnection(src.Connection)
	if err != nil {
		res.Err = err
		log.Warn("来源配置无效", "error", err)
		return res
	}
	if r.buf == nil {
		id, err := r.store.BeginRun(ctx, src.Owner, src.Connection)
		if err != nil {
			log.Warn("登记同步失败", "error", err)
		}
		res.RunID = id
	}

	res.Pages, res.Posts, res.Err = r.walk(ctx, conn, src)
	if res.Err != nil {
		log.Warn("同步失败", "pages", res.Pages, "posts", res.Posts, "error", res.Err)
	} else {
		log.Info("同步完成", "pages", res.Pages, "posts", res.Posts)
	}
	if res.RunID != "" {
		// 即使 ctx 已取消也要写回结果
		if err := r.store.FinishRun(context.WithoutCancel(ctx), res.RunID, res.Pages, res.Posts, res.Err); err != nil {
			log.Warn("写入同步记录失败", "error", err)
		}
	}
	return res
}

// walk 沿 next 游标翻页，返回已读页数与写入帖子数。
func (r *Runner) walk(ctx context.Context, conn feed.Connection, src config.SyncSource) (pages, posts int, err error) {
	paging := model.FirstPage().WithLimit(r.pageLimit())
	q := feed.Query{OwnerID: src.Owner, Paging: &paging}
	maxPages := max(1, src.MaxPages)
	for pages < maxPages {
		page, err := r.reader.Read(ctx, conn, q)
		if err != nil {
			return pages, posts, fmt.Errorf("read page %d: %w", pages+1, err)
		}
		pages++
		for _, p := range page.Items {
			a, err := model.Archive(p, src.Owner, src.Connection)
			if err != nil {
				return pages, posts, err
			}
			if r.buf != nil {
				r.buf.AddPost(a)
			} else if err := r.store.UpsertPost(ctx, a); err != nil {
				return pages, posts, err
			}
			posts++
		}
		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
		q.Paging = page.Next
	}
	return pages, posts, nil
}

func (r *Runner) pageLimit() int {
	if r.cfg.PageLimit > 0 {
		return r.cfg.PageLimit
	}
	return model.DefaultPageLimit
}

// BufferData 返回极简模式下收集的内存数据。
func (r *Runner) BufferData() []model.ArchivedPost {
	if r == nil || r.buf == nil {
		return nil
	}
	return r.buf.Snapshot()
}
