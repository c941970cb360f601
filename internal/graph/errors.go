package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go-graph-feed/internal/fetch"
)

// 类型化错误，调用方通过 errors.Is 判断，避免字符串匹配。
var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrServer         = errors.New("server error")
	ErrDeleteRejected = errors.New("delete rejected")
)

// APIError 为 Graph API 返回的错误信封：{"error":{...}}。
type APIError struct {
	Operation  string
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	TraceID    string `json:"fbtrace_id"`
	kind       error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %v: %s (code=%d type=%s)", e.Operation, e.kind, e.Message, e.Code, e.Type)
	}
	return fmt.Sprintf("%s: %v: %s", e.Operation, e.kind, e.Message)
}

// Unwrap 使 errors.Is(err, ErrNotFound) 等判断生效。
func (e *APIError) Unwrap() error { return e.kind }

// IsAuthError 判断是否为鉴权/权限错误（重新授权可能有帮助）。
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// ParseError 将传输层的 *fetch.StatusError 转为 *APIError；其他错误包装操作名后返回。
func ParseError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	var env struct {
		Error *APIError `json:"error"`
	}
	ae := &APIError{}
	if json.Unmarshal(se.Body, &env) == nil && env.Error != nil {
		ae = env.Error
	}
	ae.Operation = operation
	ae.StatusCode = se.StatusCode
	if ae.Message == "" {
		ae.Message = se.Status
	}
	ae.kind = classify(se.StatusCode, ae.Code, ae.Subcode)
	return ae
}

// classify 依据 Graph 错误码优先、HTTP 状态其次归类。
func classify(status, code, subcode int) error {
	switch {
	case code == 190 || code == 102:
		return ErrUnauthorized
	case code == 4 || code == 17 || code == 32 || code == 613:
		return ErrRateLimited
	case code == 10 || (code >= 200 && code < 300):
		return ErrForbidden
	case code == 803 || (code == 100 && subcode == 33):
		return ErrNotFound
	}
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if status >= 500 {
		return ErrServer
	}
	return ErrBadRequest
}
