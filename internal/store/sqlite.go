// 包 store 提供归档存储实现（SQLite），包含表迁移/写入/查询/清理等操作：
// - posts：按帖子 id 去重的归档
// - sync_runs：每次同步的记录（uuid 主键）
// - crossposts：转发台账，避免重复发布
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go-graph-feed/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// 说明：modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空业务数据表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"posts", "sync_runs", "crossposts"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
            id TEXT PRIMARY KEY,
            owner TEXT,
            connection TEXT,
            type TEXT,
            reported_type TEXT,
            message TEXT,
            link TEXT,
            name TEXT,
            created TIMESTAMP,
            updated TIMESTAMP,
            fetched_at TIMESTAMP,
            raw TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts(owner, created);`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
            id TEXT PRIMARY KEY,
            owner TEXT,
            connection TEXT,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            pages INTEGER DEFAULT 0,
            posts INTEGER DEFAULT 0,
            error TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS crossposts (
            item_key TEXT,
            owner TEXT,
            post_id TEXT,
            created_at TIMESTAMP,
            PRIMARY KEY(item_key, owner)
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// UpsertPost 插入或更新归档帖子（id 主键）。
func (s *SQLite) UpsertPost(ctx context.Context, p model.ArchivedPost) error {
	if p.ID == "" {
		return errors.New("post.id required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts(id, owner, connection, type, reported_type, message, link, name, created, updated, fetched_at, raw)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET owner=excluded.owner, connection=excluded.connection, type=excluded.type,
            reported_type=excluded.reported_type, message=excluded.message, link=excluded.link, name=excluded.name,
            created=excluded.created, updated=excluded.updated, fetched_at=excluded.fetched_at, raw=excluded.raw`,
		p.ID, p.Owner, p.Connection, string(p.Type), p.ReportedType, p.Message, p.Link, p.Name,
		utc(p.CreatedTime), utc(p.UpdatedTime), utc(nowOr(p.FetchedAt)), string(p.Raw))
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", p.ID, err)
	}
	return nil
}

// ListPosts 返回归档帖子，按 created 倒序；owner 为空时返回全部。
func (s *SQLite) ListPosts(ctx context.Context, owner string) ([]model.ArchivedPost, error) {
	q := `SELECT id, owner, connection, type, COALESCE(reported_type,''), COALESCE(message,''), COALESCE(link,''), COALESCE(name,''), created, updated, fetched_at, COALESCE(raw,'') FROM posts`
	var args []any
	if owner != "" {
		q += ` WHERE owner = ?`
		args = append(args, owner)
	}
	q += ` ORDER BY created DESC, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	var out []model.ArchivedPost
	for rows.Next() {
		var p model.ArchivedPost
		var typ, raw string
		var created, updated, fetched sql.NullTime
		if err := rows.Scan(&p.ID, &p.Owner, &p.Connection, &typ, &p.ReportedType, &p.Message, &p.Link, &p.Name, &created, &updated, &fetched, &raw); err != nil {
			return nil, fmt.Errorf("scan posts: %w", err)
		}
		p.Type = model.PostType(typ)
		if created.Valid {
			p.CreatedTime = created.Time
		}
		if updated.Valid {
			p.UpdatedTime = updated.Time
		}
		if fetched.Valid {
			p.FetchedAt = fetched.Time
		} else {
			p.FetchedAt = time.Now()
		}
		if raw != "" {
			p.Raw = []byte(raw)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// BeginRun 登记一次同步并返回其 id。
func (s *SQLite) BeginRun(ctx context.Context, owner, connection string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sync_runs(id, owner, connection, started_at) VALUES(?,?,?,?)`,
		id, owner, connection, utc(time.Now()))
	if err != nil {
		return "", fmt.Errorf("begin run %s/%s: %w", owner, connection, err)
	}
	return id, nil
}

// FinishRun 写入同步结果；runErr 非空时记录错误信息。
func (s *SQLite) FinishRun(ctx context.Context, id string, pages, posts int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sync_runs SET finished_at=?, pages=?, posts=?, error=? WHERE id=?`,
		utc(time.Now()), pages, posts, msg, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: not found", id)
	}
	return nil
}

// LastRun 返回某来源最近一次同步；不存在时 ok=false。
func (s *SQLite) LastRun(ctx context.Context, owner, connection string) (model.SyncRun, bool, error) {
	var r model.SyncRun
	var started, finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT id, owner, connection, started_at, finished_at, pages, posts, COALESCE(error,'')
        FROM sync_runs WHERE owner=? AND connection=? ORDER BY started_at DESC LIMIT 1`, owner, connection).
		Scan(&r.ID, &r.Owner, &r.Connection, &started, &finished, &r.Pages, &r.Posts, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("query last run %s/%s: %w", owner, connection, err)
	}
	if started.Valid {
		r.StartedAt = started.Time
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, true, nil
}

// MarkCrossposted 记录某条目已转发到 owner。
func (s *SQLite) MarkCrossposted(ctx context.Context, itemKey, owner, postID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO crossposts(item_key, owner, post_id, created_at) VALUES(?,?,?,?)
        ON CONFLICT(item_key, owner) DO UPDATE SET post_id=excluded.post_id`,
		itemKey, owner, postID, utc(time.Now()))
	if err != nil {
		return fmt.Errorf("mark crossposted %s: %w", itemKey, err)
	}
	return nil
}

// IsCrossposted 判断条目是否已转发到 owner。
func (s *SQLite) IsCrossposted(ctx context.Context, itemKey, owner string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM crossposts WHERE item_key=? AND owner=?`, itemKey, owner).Scan(&n); err != nil {
		return false, fmt.Errorf("query crosspost %s: %w", itemKey, err)
	}
	return n > 0, nil
}

// Stats 统计汇总：帖子数/owner 数、同步次数与失败数、转发数。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	counts := []struct {
		q   string
		dst *int
	}{
		{`SELECT COUNT(1) FROM posts`, &st.PostsTotal},
		{`SELECT COUNT(DISTINCT owner) FROM posts`, &st.Owners},
		{`SELECT COUNT(1) FROM sync_runs`, &st.RunsTotal},
		{`SELECT COUNT(1) FROM sync_runs WHERE error IS NOT NULL AND error <> ''`, &st.RunsFailed},
		{`SELECT COUNT(1) FROM crossposts`, &st.Crossposted},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.q).Scan(c.dst); err != nil {
			return st, fmt.Errorf("stats: %w", err)
		}
	}
	st.UpdatedAt = time.Now()
	return st, nil
}

// CleanOldPosts 按天数阈值清理过期帖子（基于 created 字段）。
func (s *SQLite) CleanOldPosts(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := utc(time.Now().AddDate(0, 0, -days))
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE created < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean old posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// utc 统一以 UTC 写入，保证按字符串比较时间列时有序。
func utc(t time.Time) time.Time { return t.UTC() }
