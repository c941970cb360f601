// 包 feed 为 Graph API feed 资源族的类型化客户端：
// - 读：feed/home/statuses/links/posts/tagged/checkins 分页列表与单条读取
// - 写：发布消息/链接/任意载荷，删除帖子
// - 解码：按端点强制类型或按内容解析出具体的帖子变体
// Template 构造后只读，可并发使用；每个操作只发起一次请求，不重试。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go-graph-feed/internal/graph"
	"go-graph-feed/internal/logx"
	"go-graph-feed/internal/model"
)

// DefaultOwner 为当前已授权的用户。
const DefaultOwner = "me"

// Transport 为读操作所需的传输能力，由 *fetch.Client 实现。
type Transport interface {
	GetJSON(ctx context.Context, rawURL string) ([]byte, error)
}

// GraphAPI 为下层通用 Graph 对象操作，由 *graph.Client 实现。
type GraphAPI interface {
	BaseURL() string
	FetchObject(ctx context.Context, id string, params url.Values) (json.RawMessage, error)
	FetchConnections(ctx context.Context, ownerID, connection string, params url.Values) (*graph.Envelope, error)
	Publish(ctx context.Context, targetID, connection string, params url.Values) (string, error)
	Delete(ctx context.Context, id string) error
}

var _ GraphAPI = (*graph.Client)(nil)

// Connection 为 owner 下的分页连接名。
type Connection string

const (
	ConnFeed     Connection = "feed"
	ConnHome     Connection = "home"
	ConnStatuses Connection = "statuses"
	ConnLinks    Connection = "links"
	ConnPosts    Connection = "posts"
	ConnTagged   Connection = "tagged"
	ConnCheckins Connection = "checkins" // 实际请求 posts?with=location
)

// Connections 为全部可读连接。
var Connections = []Connection{ConnFeed, ConnHome, ConnStatuses, ConnLinks, ConnPosts, ConnTagged, ConnCheckins}

// ParseConnection 校验连接名。
func ParseConnection(s string) (Connection, error) {
	for _, c := range Connections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown connection %q", s)
}

// Query 为读操作参数；零值表示 owner=me、首页（limit=25）。
type Query struct {
	OwnerID string
	Paging  *model.PagingParameters
}

func (q Query) owner() string {
	if q.OwnerID == "" {
		return DefaultOwner
	}
	return q.OwnerID
}

func (q Query) paging() model.PagingParameters {
	if q.Paging == nil {
		return model.FirstPage()
	}
	return *q.Paging
}

// Template 实现 feed 读写操作。
type Template struct {
	tr  Transport
	api GraphAPI
}

// New 创建 Template；tr 负责读请求，api 负责写请求与过滤后的连接读取。
func New(tr Transport, api GraphAPI) *Template {
	return &Template{tr: tr, api: api}
}

// Feed 读取 owner 的 feed（自己与他人发布在其时间线上的内容）。
func (t *Template) Feed(ctx context.Context, q Query) (*model.Page[model.Post], error) {
	return readConnection[model.Post](ctx, t, q, ConnFeed, "")
}

// HomeFeed 读取 owner 的首页动态。
func (t *Template) HomeFeed(ctx context.Context, q Query) (*model.Page[model.Post], error) {
	return readConnection[model.Post](ctx, t, q, ConnHome, "")
}

// Statuses 读取状态更新；每一条都按 status 解码。
func (t *Template) Statuses(ctx context.Context, q Query) (*model.Page[*model.StatusPost], error) {
	return readConnection[*model.StatusPost](ctx, t, q, ConnStatuses, model.TypeStatus)
}

// Links 读取分享的链接；每一条都按 link 解码。
func (t *Template) Links(ctx context.Context, q Query) (*model.Page[*model.LinkPost], error) {
	return readConnection[*model.LinkPost](ctx, t, q, ConnLinks, model.TypeLink)
}

// Posts 读取 owner 自己发布的帖子。
func (t *Template) Posts(ctx context.Context, q Query) (*model.Page[model.Post], error) {
	return readConnection[model.Post](ctx, t, q, ConnPosts, "")
}

// Tagged 读取 owner 被标记的帖子。
func (t *Template) Tagged(ctx context.Context, q Query) (*model.Page[model.Post], error) {
	return readConnection[model.Post](ctx, t, q, ConnTagged, "")
}

// Checkins 读取带位置的帖子：复用 posts 连接并附加 with=location，
// 经由 GraphAPI 读取，不附加 fields。未指定分页时为 limit=25&offset=0。
func (t *Template) Checkins(ctx context.Context, q Query) (*model.Page[model.Post], error) {
	p := model.NewPagingParameters(model.Int(model.DefaultPageLimit), model.Int(0), nil, nil)
	if q.Paging != nil {
		p = *q.Paging
	}
	params := p.Values()
	params.Set("with", "location")
	env, err := t.api.FetchConnections(ctx, q.owner(), string(ConnPosts), params)
	if err != nil {
		return nil, err
	}
	return decodePage[model.Post](env, "")
}

// GetPost 按 id 读取单条帖子，类型按内容解析。
func (t *Template) GetPost(ctx context.Context, id string) (model.Post, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	b, err := t.tr.GetJSON(ctx, t.api.BaseURL()+id)
	if err != nil {
		return nil, err
	}
	return DecodePost(b, "")
}

// GetCheckin 按 id 读取签到，经由 GraphAPI 读取后按帖子解码。
func (t *Template) GetCheckin(ctx context.Context, id string) (model.Post, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	raw, err := t.api.FetchObject(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return DecodePost(raw, "")
}

// Read 按连接名分发到对应的读操作，statuses/links 的结果转为通用 Post。
func (t *Template) Read(ctx context.Context, conn Connection, q Query) (*model.Page[model.Post], error) {
	switch conn {
	case ConnFeed:
		return t.Feed(ctx, q)
	case ConnHome:
		return t.HomeFeed(ctx, q)
	case ConnStatuses:
		p, err := t.Statuses(ctx, q)
		return widen(p, err)
	case ConnLinks:
		p, err := t.Links(ctx, q)
		return widen(p, err)
	case ConnPosts:
		return t.Posts(ctx, q)
	case ConnTagged:
		return t.Tagged(ctx, q)
	case ConnCheckins:
		return t.Checkins(ctx, q)
	}
	return nil, fmt.Errorf("unknown connection %q", conn)
}

// readConnection 为分页读取的公共流程：拼 URI → GET → 解码信封。
// 传输错误原样返回。
func readConnection[T model.Post](ctx context.Context, t *Template, q Query, conn Connection, forced model.PostType) (*model.Page[T], error) {
	uri := ConnectionURI(t.api.BaseURL(), q.owner(), conn, q.paging())
	logx.Debugf("读取连接：%s/%s", q.owner(), conn)
	b, err := t.tr.GetJSON(ctx, uri)
	if err != nil {
		return nil, err
	}
	var env graph.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", conn, err)
	}
	return decodePage[T](&env, forced)
}

func widen[T model.Post](p *model.Page[T], err error) (*model.Page[model.Post], error) {
	if err != nil {
		return nil, err
	}
	out := &model.Page[model.Post]{Items: make([]model.Post, len(p.Items)), Previous: p.Previous, Next: p.Next}
	for i, it := range p.Items {
		out.Items[i] = it
	}
	return out, nil
}
