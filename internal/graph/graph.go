// 包 graph 为通用 Graph 对象操作（取对象/取连接/发布/删除）的客户端，
// 是 feed 包依赖的下层协作者；错误统一转为 *APIError。
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go-graph-feed/internal/fetch"
	"go-graph-feed/internal/logx"
)

// DefaultAPIVersion 为默认的 Graph API 版本。
const DefaultAPIVersion = "2.5"

// Transport 为 graph 客户端所需的传输能力，由 *fetch.Client 实现。
type Transport interface {
	GetJSON(ctx context.Context, rawURL string) ([]byte, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error)
	Delete(ctx context.Context, rawURL string) ([]byte, error)
}

var _ Transport = (*fetch.Client)(nil)

// Envelope 为分页连接的响应信封。
type Envelope struct {
	Data   []json.RawMessage `json:"data"`
	Paging *Paging           `json:"paging,omitempty"`
}

// Paging 为信封中的分页信息：previous/next 为完整 URL，cursors 为游标。
type Paging struct {
	Previous string   `json:"previous,omitempty"`
	Next     string   `json:"next,omitempty"`
	Cursors  *Cursors `json:"cursors,omitempty"`
}

type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Client 实现 Graph 对象操作，构造后只读。
type Client struct {
	tr   Transport
	base string
}

// New 以传输层与基础地址创建客户端；base 为空时按 version 拼出官方地址。
func New(tr Transport, base, version string) *Client {
	if base == "" {
		if version == "" {
			version = DefaultAPIVersion
		}
		base = "https://graph.facebook.com/v" + strings.TrimPrefix(version, "v") + "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{tr: tr, base: base}
}

// BaseURL 返回以 "/" 结尾的基础地址。
func (c *Client) BaseURL() string { return c.base }

// FetchObject 读取单个对象的原始 JSON。
func (c *Client) FetchObject(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	b, err := c.tr.GetJSON(ctx, withQuery(c.base+id, params))
	if err != nil {
		return nil, ParseError(err, "fetchObject")
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("fetchObject %s: invalid json response", id)
	}
	return json.RawMessage(b), nil
}

// FetchConnections 读取 owner 的某个连接（如 posts）的一页原始信封。
func (c *Client) FetchConnections(ctx context.Context, ownerID, connection string, params url.Values) (*Envelope, error) {
	b, err := c.tr.GetJSON(ctx, withQuery(c.base+ownerID+"/"+connection, params))
	if err != nil {
		return nil, ParseError(err, "fetchConnections")
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode %s/%s envelope: %w", ownerID, connection, err)
	}
	return &env, nil
}

// Publish 向 target/connection 发布并返回新对象 id。
func (c *Client) Publish(ctx context.Context, targetID, connection string, params url.Values) (string, error) {
	b, err := c.tr.PostForm(ctx, c.base+targetID+"/"+connection, params)
	if err != nil {
		return "", ParseError(err, "publish")
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode publish response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("publish %s/%s: response without id", targetID, connection)
	}
	logx.Debugf("已发布：%s/%s id=%s", targetID, connection, out.ID)
	return out.ID, nil
}

// Delete 删除对象；服务端返回 success=false 时视为拒绝。
func (c *Client) Delete(ctx context.Context, id string) error {
	b, err := c.tr.Delete(ctx, c.base+id)
	if err != nil {
		return ParseError(err, "delete")
	}
	b = bytes.TrimSpace(b)
	// 旧版本直接返回 true/false
	switch string(b) {
	case "true", "":
		return nil
	case "false":
		return fmt.Errorf("delete %s: %w", id, ErrDeleteRejected)
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("decode delete response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("delete %s: %w", id, ErrDeleteRejected)
	}
	return nil
}

func withQuery(u string, params url.Values) string {
	if len(params) == 0 {
		return u
	}
	return u + "?" + params.Encode()
}
