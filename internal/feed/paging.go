package feed

import (
	"net/url"
	"strings"

	"go-graph-feed/internal/graph"
	"go-graph-feed/internal/model"
)

// AllPostFields 为每条帖子请求的字段列表，内容与顺序属于线上协议，修改需同步测试。
var AllPostFields = []string{
	"id", "actions", "admin_creator", "application", "caption", "created_time", "description", "from", "icon",
	"is_hidden", "is_published", "link", "message", "message_tags", "name", "object_id", "picture", "place",
	"privacy", "properties", "source",
	"status_type", "story", "to", "type", "updated_time", "with_tags", "shares", "full_picture",
}

// ConnectionURI 拼出 {base}{owner}/{connection}?<分页参数>&fields=...。
// 分页参数按 model.PagingKeys 顺序输出，只包含已设置的字段。
func ConnectionURI(base, ownerID string, conn Connection, p model.PagingParameters) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(ownerID)
	b.WriteByte('/')
	b.WriteString(string(conn))
	vals := p.Values()
	sep := byte('?')
	for _, k := range model.PagingKeys {
		v := vals.Get(k)
		if v == "" {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
		sep = '&'
	}
	b.WriteByte(sep)
	b.WriteString("fields=")
	b.WriteString(strings.Join(AllPostFields, ","))
	return b.String()
}

// decodePage 逐条解码 data 并提取 previous/next 分页参数；data 为空时返回空列表。
func decodePage[T model.Post](env *graph.Envelope, forced model.PostType) (*model.Page[T], error) {
	items := make([]T, 0, len(env.Data))
	for _, raw := range env.Data {
		p, err := DecodePost(raw, forced)
		if err != nil {
			return nil, err
		}
		v, ok := p.(T)
		if !ok {
			return nil, &DecodeError{Type: p.Base().Type, Err: errVariantMismatch}
		}
		items = append(items, v)
	}
	page := &model.Page[T]{Items: items}
	if env.Paging != nil {
		page.Previous = pageParameters(env.Paging.Previous)
		page.Next = pageParameters(env.Paging.Next)
	}
	return page, nil
}

// pageParameters 从分页 URL 的查询串还原参数；URL 缺失或无法解析时返回 nil。
func pageParameters(raw string) *model.PagingParameters {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	p := model.PagingFromValues(u.Query())
	return &p
}
