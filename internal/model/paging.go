package model

import (
	"net/url"
	"strconv"
)

// DefaultPageLimit 为未指定分页时的每页条数。
const DefaultPageLimit = 25

// PagingParameters 为不可变的分页参数；nil/空字段表示不发送。
type PagingParameters struct {
	limit       *int
	offset      *int
	since       *int64
	until       *int64
	after       string
	before      string
	pagingToken string
}

// FirstPage 返回默认首页参数（limit=25，无游标）。
func FirstPage() PagingParameters { return NewPagingParameters(intPtr(DefaultPageLimit), nil, nil, nil) }

// NewPagingParameters 以 limit/offset/since/until 构造（基于偏移或时间的分页）。
func NewPagingParameters(limit, offset *int, since, until *int64) PagingParameters {
	return PagingParameters{limit: limit, offset: offset, since: since, until: until}
}

// CursorPage 以游标构造（基于 after/before 的分页）；limit<=0 表示使用服务端默认值。
func CursorPage(limit int, after, before string) PagingParameters {
	p := PagingParameters{after: after, before: before}
	if limit > 0 {
		p.limit = intPtr(limit)
	}
	return p
}

// WithLimit 返回替换 limit 后的副本。
func (p PagingParameters) WithLimit(limit int) PagingParameters {
	p.limit = intPtr(limit)
	return p
}

// WithPagingToken 返回替换 __paging_token 后的副本。
func (p PagingParameters) WithPagingToken(token string) PagingParameters {
	p.pagingToken = token
	return p
}

func (p PagingParameters) Limit() (int, bool) {
	if p.limit == nil {
		return 0, false
	}
	return *p.limit, true
}

func (p PagingParameters) Offset() (int, bool) {
	if p.offset == nil {
		return 0, false
	}
	return *p.offset, true
}

func (p PagingParameters) Since() (int64, bool) {
	if p.since == nil {
		return 0, false
	}
	return *p.since, true
}

func (p PagingParameters) Until() (int64, bool) {
	if p.until == nil {
		return 0, false
	}
	return *p.until, true
}

func (p PagingParameters) After() string       { return p.after }
func (p PagingParameters) Before() string      { return p.before }
func (p PagingParameters) PagingToken() string { return p.pagingToken }

// Values 按固定顺序输出已设置的字段，键名与线上协议一致。
func (p PagingParameters) Values() url.Values {
	v := url.Values{}
	if p.limit != nil {
		v.Set("limit", strconv.Itoa(*p.limit))
	}
	if p.offset != nil {
		v.Set("offset", strconv.Itoa(*p.offset))
	}
	if p.since != nil {
		v.Set("since", strconv.FormatInt(*p.since, 10))
	}
	if p.until != nil {
		v.Set("until", strconv.FormatInt(*p.until, 10))
	}
	if p.after != "" {
		v.Set("after", p.after)
	}
	if p.before != "" {
		v.Set("before", p.before)
	}
	if p.pagingToken != "" {
		v.Set("__paging_token", p.pagingToken)
	}
	return v
}

// PagingKeys 为 Values 的输出顺序；url.Values.Encode 会按字母序排序，拼接 URL 时需按此顺序。
var PagingKeys = []string{"limit", "offset", "since", "until", "after", "before", "__paging_token"}

// PagingFromValues 从分页 URL 的查询参数还原分页参数；数值解析失败的字段视为缺省。
func PagingFromValues(q url.Values) PagingParameters {
	var p PagingParameters
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.limit = &n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		p.offset = &n
	}
	if n, err := strconv.ParseInt(q.Get("since"), 10, 64); err == nil {
		p.since = &n
	}
	if n, err := strconv.ParseInt(q.Get("until"), 10, 64); err == nil {
		p.until = &n
	}
	p.after = q.Get("after")
	p.before = q.Get("before")
	p.pagingToken = q.Get("__paging_token")
	return p
}

// Page 为一页结果，Items 保持服务端顺序。
type Page[T any] struct {
	Items    []T
	Previous *PagingParameters
	Next     *PagingParameters
}

func (p *Page[T]) HasNext() bool     { return p != nil && p.Next != nil }
func (p *Page[T]) HasPrevious() bool { return p != nil && p.Previous != nil }

func intPtr(n int) *int { return &n }

// Int 与 Int64 便于调用方构造可选数值。
func Int(n int) *int       { return &n }
func Int64(n int64) *int64 { return &n }
