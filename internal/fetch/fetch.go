// 包 fetch 封装 Graph API 的 HTTP 传输层（代理/超时/鉴权/重试）：
// - GetJSON：读请求，网络错误或 5xx 时按线性退避重试
// - PostForm/Delete：写请求，不重试
// - 非 2xx 响应统一返回 *StatusError（携带响应体供上层解析）
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// 响应体读取上限，避免异常响应占满内存。
const maxBody = 8 << 20

// Client 为 Graph API 传输客户端，构造后只读，可并发使用。
type Client struct {
	http      *http.Client
	retry     int
	userAgent string
	backoff   time.Duration
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// AccessToken 非空时以 Bearer 方式附加到每个请求。
	AccessToken string
	// TokenSource 优先于 AccessToken，便于接入外部的令牌刷新。
	TokenSource oauth2.TokenSource
	UserAgent   string
	// Backoff 为重试间隔基数，默认 300ms（第 i 次等待 i*Backoff）。
	Backoff time.Duration
}

// StatusError 表示服务端返回了非 2xx 状态。
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http status: %s", e.Method, redact(e.URL), e.Status)
}

// New 创建客户端，支持 http/https 代理、基础超时与 OAuth2 令牌。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	for _, p := range []string{opts.ProxyHTTP, opts.ProxyHTTPS} {
		if p == "" {
			continue
		}
		if _, err := url.Parse(p); err != nil {
			return nil, fmt.Errorf("parse proxy %s: %w", p, err)
		}
	}
	var rt http.RoundTripper = transport
	ts := opts.TokenSource
	if ts == nil && opts.AccessToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
	}
	if ts != nil {
		rt = &oauth2.Transport{Source: ts, Base: transport}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	ua := opts.UserAgent
	if ua == "" {
		// 支持环境变量覆盖（GRAPH_FEED_UA）
		ua = os.Getenv("GRAPH_FEED_UA")
	}
	if ua == "" {
		ua = "go-graph-feed/1.0"
	}
	return &Client{
		http:      &http.Client{Transport: rt, Timeout: opts.Timeout},
		retry:     opts.Retry,
		userAgent: ua,
		backoff:   opts.Backoff,
	}, nil
}

// Get 发起 GET 并返回 2xx 响应，调用方负责关闭 Body。
// 网络错误与 5xx 会重试，4xx 立即返回。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	attempts := c.retry + 1
	for i := 0; i < attempts; i++ {
		req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			lastErr = statusError(resp)
			if resp.StatusCode < 500 {
				return nil, lastErr
			}
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * c.backoff):
		}
	}
	return nil, lastErr
}

// GetJSON 读取 JSON 响应体。
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", redact(rawURL), err)
	}
	return b, nil
}

// PostForm 以表单编码发起 POST，返回响应体。
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// Delete 发起 DELETE，返回响应体。
func (c *Client) Delete(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", redact(req.URL.String()), err)
	}
	return b, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// statusError 读取并关闭响应体，构造 StatusError。
func statusError(resp *http.Response) *StatusError {
	e := &StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if resp.Body != nil {
		e.Body, _ = io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}
	return e
}

// redact 去掉 URL 中的 access_token，便于安全地写入日志与错误。
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
