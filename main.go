// 命令行入口：
// - 解析 flags 与 settings.yaml/rules.yaml
// - 初始化日志、HTTP 客户端、Graph 客户端
// - 读取连接/单条帖子，发布/删除帖子，归档同步（-sync），订阅转发（-crosspost），导出 JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go-graph-feed/internal/aggregate"
	"go-graph-feed/internal/config"
	"go-graph-feed/internal/crosspost"
	"go-graph-feed/internal/export"
	"go-graph-feed/internal/feed"
	"go-graph-feed/internal/fetch"
	"go-graph-feed/internal/graph"
	"go-graph-feed/internal/logx"
	"go-graph-feed/internal/model"
	"go-graph-feed/internal/rules"
	"go-graph-feed/internal/store"
	"go-graph-feed/internal/unfurl"
)

type options struct {
	read, owner, after, before string
	limit, offset              int
	get, post, link, message   string
	del                        string
	unfurl, sync, crosspost    bool
	export                     string
}

func main() {
	var o options
	configPath := flag.String("config", "settings.yaml", "path to settings.yaml")
	rulesPath := flag.String("rules", "rules.yaml", "path to rules.yaml (optional)")
	flag.StringVar(&o.read, "read", "", "read a connection: feed|home|statuses|links|posts|tagged|checkins")
	flag.StringVar(&o.owner, "owner", "", "owner id (default OWNER from config)")
	flag.IntVar(&o.limit, "limit", 0, "page size (default PAGE_LIMIT from config)")
	flag.IntVar(&o.offset, "offset", 0, "page offset")
	flag.StringVar(&o.after, "after", "", "cursor: page after")
	flag.StringVar(&o.before, "before", "", "cursor: page before")
	flag.StringVar(&o.get, "get", "", "fetch a single post by id")
	flag.StringVar(&o.post, "post", "", "publish a status message")
	flag.StringVar(&o.link, "link", "", "publish a link")
	flag.StringVar(&o.message, "message", "", "message attached to -link")
	flag.BoolVar(&o.unfurl, "unfurl", false, "fill link name/caption/description/picture from the page")
	flag.StringVar(&o.del, "delete", "", "delete a post by id")
	flag.BoolVar(&o.sync, "sync", false, "archive the SYNC sources into the database")
	flag.BoolVar(&o.crosspost, "crosspost", false, "publish new items of the CROSSPOST feeds")
	flag.StringVar(&o.export, "export", "", "write results to this json path")
	flag.Parse()

	// 1) 加载配置与规则
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// 2) 初始化日志：级别/格式/语言/颜色
	logx.Init(logx.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Locale: cfg.LogLocale, Color: cfg.LogColor})

	var rl *rules.Rules
	if *rulesPath != "" {
		if _, err := os.Stat(*rulesPath); err == nil {
			if rl, err = rules.Load(*rulesPath); err != nil {
				logx.Warnf("加载规则失败：%v", err)
			}
		}
	}

	// 3) 初始化 HTTP 客户端（含代理、重试与访问令牌）与 Graph 客户端
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:   cfg.Proxy.HTTP,
		ProxyHTTPS:  cfg.Proxy.HTTPS,
		Timeout:     cfg.Timeout(),
		Retry:       cfg.Concurrency.Retry,
		AccessToken: cfg.Graph.AccessToken,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}
	if cfg.Graph.AccessToken == "" {
		logx.Warnf("未配置访问令牌（GRAPH.access_token 或 %s）", config.EnvAccessToken)
	}
	api := graph.New(cl, cfg.Graph.BaseURL, cfg.Graph.APIVersion)
	tpl := feed.New(cl, api)
	if o.owner == "" {
		o.owner = cfg.Owner
	}
	if o.limit <= 0 {
		o.limit = cfg.PageLimit
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case o.get != "":
		err = getPost(ctx, tpl, o.get)
	case o.post != "":
		err = publishStatus(ctx, tpl, o)
	case o.link != "":
		err = publishLink(ctx, tpl, cl, rl, o)
	case o.del != "":
		if err = tpl.DeletePost(ctx, o.del); err == nil {
			logx.Infof("已删除：%s", o.del)
		}
	case o.read != "":
		err = readConnection(ctx, tpl, o)
	case o.crosspost:
		err = runCrosspost(ctx, cfg, tpl, cl, rl, o)
	case o.sync || len(cfg.Sync) > 0:
		err = runSync(ctx, cfg, tpl, o)
	default:
		flag.Usage()
		return
	}
	if err != nil {
		if graph.IsAuthError(err) {
			logx.Errorf("鉴权失败，请检查访问令牌：%v", err)
		} else {
			logx.Errorf("运行失败：%v", err)
		}
		stop()
		os.Exit(1)
	}
}

func getPost(ctx context.Context, tpl *feed.Template, id string) error {
	p, err := tpl.GetPost(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func publishStatus(ctx context.Context, tpl *feed.Template, o options) error {
	id, err := tpl.Post(ctx, o.owner, o.post)
	if err != nil {
		return err
	}
	logx.Infof("已发布状态：%s", id)
	return nil
}

func publishLink(ctx context.Context, tpl *feed.Template, cl *fetch.Client, rl *rules.Rules, o options) error {
	link := model.Link{Link: o.link}
	if o.unfurl {
		uf, err := unfurl.New(cl, rl, 0)
		if err != nil {
			return err
		}
		if link, err = uf.Fill(ctx, link); err != nil {
			logx.Warnf("链接预览失败，按原样发布：%v", err)
		}
	}
	id, err := tpl.PostLinkTo(ctx, o.owner, o.message, link)
	if err != nil {
		return err
	}
	logx.Infof("已发布链接：%s", id)
	return nil
}

func readConnection(ctx context.Context, tpl *feed.Template, o options) error {
	conn, err := feed.ParseConnection(o.read)
	if err != nil {
		return err
	}
	var paging model.PagingParameters
	if o.after != "" || o.before != "" {
		paging = model.CursorPage(o.limit, o.after, o.before)
	} else {
		var offset *int
		if o.offset > 0 {
			offset = model.Int(o.offset)
		}
		paging = model.NewPagingParameters(model.Int(o.limit), offset, nil, nil)
	}
	page, err := tpl.Read(ctx, conn, feed.Query{OwnerID: o.owner, Paging: &paging})
	if err != nil {
		return err
	}
	logx.Infof("%s/%s：%d 条", o.owner, conn, len(page.Items))
	for _, p := range page.Items {
		b := p.Base()
		logx.Infof("- %s [%s] %s", b.ID, b.Type, summary(b))
	}
	if page.HasNext() {
		logx.Infof("下一页：-after %s", page.Next.After())
	}
	if o.export != "" {
		if err := export.PageToJSON(page, o.owner, string(conn), o.export); err != nil {
			return err
		}
		logx.Infof("已导出 %s", o.export)
	}
	return nil
}

func runSync(ctx context.Context, cfg *config.Config, tpl *feed.Template, o options) error {
	// 数据存储：极简模式不打开数据库；正常模式打开并按需重置
	var archive aggregate.Archive
	var st *store.SQLite
	if !cfg.SimpleMode {
		var err error
		if st, err = openStore(ctx, cfg); err != nil {
			return err
		}
		defer st.Close()
		archive = st
	}
	run := aggregate.New(cfg, archive, tpl)
	logx.Infof("开始同步：极简模式=%v", cfg.SimpleMode)
	results, err := run.Run(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		logx.Warnf("同步完成：来源=%d 失败=%d", len(results), failed)
	}
	if o.export == "" {
		return nil
	}
	if cfg.SimpleMode {
		// 极简导出：只导出 JSON，跳过写库
		err = export.ToJSONData(run.BufferData(), o.export)
	} else {
		err = export.ToJSON(ctx, st, "", o.export)
	}
	if err != nil {
		return err
	}
	logx.Infof("已导出 %s", o.export)
	return nil
}

func runCrosspost(ctx context.Context, cfg *config.Config, tpl *feed.Template, cl *fetch.Client, rl *rules.Rules, o options) error {
	if len(cfg.Crosspost) == 0 {
		return errors.New("no CROSSPOST sources configured")
	}
	// 转发台账始终需要数据库
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	var uf crosspost.Unfurler
	if o.unfurl {
		svc, err := unfurl.New(cl, rl, 0)
		if err != nil {
			return err
		}
		uf = svc
	}
	posted := 0
	for _, r := range crosspost.New(cl, tpl, st, uf).RunAll(ctx, cfg.Crosspost) {
		posted += len(r.Posted)
		logx.Infof("%s → %s：新发布=%d 已跳过=%d", r.FeedURL, r.Owner, len(r.Posted), r.Skipped)
	}
	logx.Infof("转发完成：共发布 %d 条", posted)
	return ctx.Err()
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLite, error) {
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.ResetOnStart {
		if err := st.Reset(ctx); err != nil {
			logx.Warnf("启动清理数据库失败：%v", err)
		} else {
			logx.Infof("已清理数据库表（posts/sync_runs/crossposts）")
		}
	}
	return st, nil
}

// summary 返回用于列表展示的简短文本。
func summary(b *model.BasePost) string {
	s := b.Message
	if s == "" {
		s = b.Story
	}
	if s == "" {
		s = b.Link
	}
	r := []rune(s)
	if len(r) > 60 {
		s = string(r[:60]) + "…"
	}
	return s
}
