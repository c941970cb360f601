// 包 graphtest 提供内存版 Graph API 服务（基于 chi 路由），供各包测试使用：
// - GET /{id} 与 GET /{owner}/{connection}（limit/offset/after/before 分页，with=location 过滤）
// - POST /{target}/{connection} 发布，DELETE /{id} 删除
// - 记录所有请求，便于断言 URL/表单/鉴权头
package graphtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Version 为假服务的路径前缀版本号。
const Version = "2.5"

// Request 为一次被记录的请求。
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    url.Values
	Form     url.Values
	Auth     string
}

// Server 为假 Graph API。
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	objects  map[string]map[string]any
	conns    map[string][]string
	raw      map[string]rawResponse
	requests []Request
	seq      int
	// Token 非空时要求 Authorization: Bearer <Token>。
	Token string
}

type rawResponse struct {
	status int
	body   string
}

// NewServer 启动服务并在测试结束时关闭。
func NewServer(t testing.TB) *Server {
	s := &Server{
		objects: map[string]map[string]any{},
		conns:   map[string][]string{},
		raw:     map[string]rawResponse{},
	}
	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/v"+Version, func(r chi.Router) {
		r.Get("/{id}", s.getObject)
		r.Delete("/{id}", s.deleteObject)
		r.Get("/{owner}/{conn}", s.getConnection)
		r.Post("/{owner}/{conn}", s.publish)
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// BaseURL 返回以 "/" 结尾的基础地址。
func (s *Server) BaseURL() string { return s.srv.URL + "/v" + Version + "/" }

// URL 返回服务根地址。
func (s *Server) URL() string { return s.srv.URL }

// AddPost 将对象加入 owner 的某个连接（按加入顺序返回），obj 必须包含 id。
func (s *Server) AddPost(owner, conn string, obj map[string]any) {
	id := fmt.Sprint(obj["id"])
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = obj
	key := owner + "/" + conn
	s.conns[key] = append(s.conns[key], id)
}

// SetRaw 为某个路径（不含查询串，如 /v2.5/me/feed）固定返回内容。
func (s *Server) SetRaw(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[path] = rawResponse{status: status, body: body}
}

// Object 返回已存储的对象。
func (s *Server) Object(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	return o, ok
}

// Requests 返回已记录请求的副本。
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest 返回最后一次请求。
func (s *Server) LastRequest() Request {
	reqs := s.Requests()
	if len(reqs) == 0 {
		return Request{}
	}
	return reqs[len(reqs)-1]
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var form url.Values
		if r.Method == http.MethodPost {
			b, _ := io.ReadAll(r.Body)
			form, _ = url.ParseQuery(string(b))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Query:    r.URL.Query(),
			Form:     form,
			Auth:     r.Header.Get("Authorization"),
		})
		raw, hasRaw := s.raw[r.URL.Path]
		token := s.Token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "Invalid OAuth access token.", "OAuthException", 190, 0)
			return
		}
		if hasRaw {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(raw.status)
			_, _ = io.WriteString(w, raw.body)
			return
		}
		if form != nil {
			r.PostForm = form
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	obj, ok := s.Object(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Unsupported get request.", "GraphMethodException", 100, 33)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.objects[id]
	delete(s.objects, id)
	for k, ids := range s.conns {
		s.conns[k] = without(ids, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported delete request.", "GraphMethodException", 100, 33)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	owner, conn := chi.URLParam(r, "owner"), chi.URLParam(r, "conn")
	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("%s_%d", owner, s.seq)
	s.mu.Unlock()
	obj := map[string]any{"id": id, "from": map[string]any{"id": owner}}
	for k := range r.PostForm {
		obj[k] = r.PostForm.Get(k)
	}
	if _, ok := obj["link"]; ok {
		obj["type"] = "link"
	} else {
		obj["type"] = "status"
	}
	s.AddPost(owner, conn, obj)
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) getConnection(w http.ResponseWriter, r *http.Request) {
	owner, conn := chi.URLParam(r, "owner"), chi.URLParam(r, "conn")
	q := r.URL.Query()
	s.mu.Lock()
	var items []map[string]any
	for _, id := range s.conns[owner+"/"+conn] {
		obj := s.objects[id]
		if q.Get("with") == "location" && obj["place"] == nil {
			continue
		}
		items = append(items, obj)
	}
	s.mu.Unlock()

	limit := 25
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	start := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		start = n
	}
	if c := q.Get("after"); c != "" {
		start = decodeCursor(c) + 1
	}
	if c := q.Get("before"); c != "" {
		start = max(0, decodeCursor(c)-limit)
	}
	start = min(start, len(items))
	end := min(start+limit, len(items))
	out := map[string]any{"data": nonNil(items[start:end])}
	if end > start {
		self := s.BaseURL() + owner + "/" + conn
		paging := map[string]any{
			"cursors": map[string]string{"before": encodeCursor(start), "after": encodeCursor(end - 1)},
		}
		if end < len(items) {
			paging["next"] = self + "?" + pageQuery(q, limit, "after", encodeCursor(end-1))
		}
		if start > 0 {
			paging["previous"] = self + "?" + pageQuery(q, limit, "before", encodeCursor(start))
		}
		out["paging"] = paging
	}
	writeJSON(w, http.StatusOK, out)
}

func pageQuery(q url.Values, limit int, key, cursor string) string {
	v := url.Values{}
	if f := q.Get("fields"); f != "" {
		v.Set("fields", f)
	}
	if w := q.Get("with"); w != "" {
		v.Set("with", w)
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set(key, cursor)
	return v.Encode()
}

func encodeCursor(i int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(i)))
}

func decodeCursor(c string) int {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(string(b))
	return n
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, typ string, code, subcode int) {
	writeJSON(w, status, map[string]any{"error": map[string]any{
		"message":       msg,
		"type":          typ,
		"code":          code,
		"error_subcode": subcode,
		"fbtrace_id":    "graphtest",
	}})
}
