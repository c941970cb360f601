package aggregate

import (
	"sort"
	"sync"

	"go-graph-feed/internal/model"
)

// SimpleBuffer 在极简模式下收集同步数据，避免落库。
type SimpleBuffer struct {
	mu    sync.Mutex
	posts map[string]model.ArchivedPost // key: post id
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{posts: make(map[string]model.ArchivedPost)}
}

func (b *SimpleBuffer) AddPost(p model.ArchivedPost) {
	if p.ID == "" {
		return
	}
	b.mu.Lock()
	b.posts[p.ID] = p
	b.mu.Unlock()
}

// Snapshot 返回副本，按创建时间倒序（相同时按 id）。
func (b *SimpleBuffer) Snapshot() []model.ArchivedPost {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps := make([]model.ArchivedPost, 0, len(b.posts))
	for _, v := range b.posts {
		ps = append(ps, v)
	}
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedTime.Equal(ps[j].CreatedTime) {
			return ps[i].CreatedTime.After(ps[j].CreatedTime)
		}
		return ps[i].ID < ps[j].ID
	})
	return ps
}
