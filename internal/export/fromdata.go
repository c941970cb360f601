package export

import (
	"fmt"
	"time"

	"go-graph-feed/internal/model"
)

// ToJSONData 直接将内存中的帖子写成 JSON，带全局上限与统计。
func ToJSONData(posts []model.ArchivedPost, path string) error {
	if len(posts) > MaxExportPosts {
		posts = posts[:MaxExportPosts]
	}
	owners := map[string]struct{}{}
	for _, p := range posts {
		owners[p.Owner] = struct{}{}
	}
	st := model.Stats{
		PostsTotal: len(posts),
		Owners:     len(owners),
		UpdatedAt:  time.Now(),
	}
	return writeJSON(path, model.Export{Stats: st, Posts: posts})
}

// PageToJSON 将一次读取得到的分页结果写成 JSON。
func PageToJSON(page *model.Page[model.Post], owner, connection, path string) error {
	if page == nil {
		return ToJSONData(nil, path)
	}
	posts := make([]model.ArchivedPost, 0, len(page.Items))
	for _, p := range page.Items {
		a, err := model.Archive(p, owner, connection)
		if err != nil {
			return fmt.Errorf("archive page item: %w", err)
		}
		posts = append(posts, a)
	}
	return ToJSONData(posts, path)
}
