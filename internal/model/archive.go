package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ArchivedPost 为归档库中的一行：常用列展开便于查询，完整属性保存在 Raw。
type ArchivedPost struct {
	ID           string          `json:"id"`
	Owner        string          `json:"owner"`
	Connection   string          `json:"connection"`
	Type         PostType        `json:"type"`
	ReportedType string          `json:"reported_type,omitempty"`
	Message      string          `json:"message,omitempty"`
	Link         string          `json:"link,omitempty"`
	Name         string          `json:"name,omitempty"`
	CreatedTime  time.Time       `json:"created_time"`
	UpdatedTime  time.Time       `json:"updated_time"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Archive 将帖子转换为归档行。
func Archive(p Post, owner, connection string) (ArchivedPost, error) {
	if p == nil {
		return ArchivedPost{}, errors.New("nil post")
	}
	b := p.Base()
	raw, err := json.Marshal(b)
	if err != nil {
		return ArchivedPost{}, fmt.Errorf("marshal post %s: %w", b.ID, err)
	}
	return ArchivedPost{
		ID:           b.ID,
		Owner:        owner,
		Connection:   connection,
		Type:         b.Type,
		ReportedType: b.ReportedType,
		Message:      b.Message,
		Link:         b.Link,
		Name:         b.Name,
		CreatedTime:  b.CreatedTime,
		UpdatedTime:  b.UpdatedTime,
		FetchedAt:    time.Now(),
		Raw:          raw,
	}, nil
}

// Post 由 Raw 还原具体变体。
func (a ArchivedPost) Post() (Post, error) {
	var b BasePost
	if len(a.Raw) == 0 {
		return nil, fmt.Errorf("post %s: empty raw", a.ID)
	}
	if err := json.Unmarshal(a.Raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal post %s: %w", a.ID, err)
	}
	if b.Type == "" {
		b.Type = a.Type
	}
	return NewPost(b), nil
}

// SyncRun 记录一次归档同步（某 owner 的某个连接）。
type SyncRun struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Connection string    `json:"connection"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Posts      int       `json:"posts"`
	Error      string    `json:"error,omitempty"`
}

// Stats 为归档统计。
type Stats struct {
	PostsTotal  int       `json:"posts_total"`
	Owners      int       `json:"owners"`
	RunsTotal   int       `json:"runs_total"`
	RunsFailed  int       `json:"runs_failed"`
	Crossposted int       `json:"crossposted"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Export 为导出文件结构。
type Export struct {
	Stats Stats          `json:"statistical_data"`
	Posts []ArchivedPost `json:"post_data"`
}
