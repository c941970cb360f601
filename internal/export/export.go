// 包 export 负责导出：将归档库或内存中的帖子写为 JSON 文件。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go-graph-feed/internal/model"
)

// MaxExportPosts 为单个导出文件的帖子数上限（按时间倒序保留最新）。
const MaxExportPosts = 150

// Source 为导出所需的查询能力，由 *store.SQLite 实现。
type Source interface {
	ListPosts(ctx context.Context, owner string) ([]model.ArchivedPost, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// ToJSON 查询统计/帖子并写入 JSON 文件（带缩进格式）；owner 为空时导出全部。
func ToJSON(ctx context.Context, s Source, owner, path string) error {
	posts, err := s.ListPosts(ctx, owner)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if len(posts) > MaxExportPosts {
		posts = posts[:MaxExportPosts]
	}
	// 统计中的 posts_total 以导出数量为准，避免与上限不符
	stats.PostsTotal = len(posts)
	return writeJSON(path, model.Export{Stats: stats, Posts: posts})
}

func writeJSON(path string, out model.Export) error {
	if out.Posts == nil {
		out.Posts = []model.ArchivedPost{}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
