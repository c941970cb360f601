package feed

import (
	"context"
	"errors"
	"net/url"

	"go-graph-feed/internal/model"
)

const feedConnection = "feed"

// UpdateStatus 在当前用户的 feed 上发布一条纯文本消息，返回新帖子 id。
func (t *Template) UpdateStatus(ctx context.Context, message string) (string, error) {
	return t.Post(ctx, DefaultOwner, message)
}

// Post 在 owner 的 feed 上发布一条纯文本消息。
func (t *Template) Post(ctx context.Context, ownerID, message string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	return t.api.Publish(ctx, ownerOr(ownerID), feedConnection, form)
}

// PostLink 在当前用户的 feed 上发布链接。
func (t *Template) PostLink(ctx context.Context, message string, link model.Link) (string, error) {
	return t.PostLinkTo(ctx, DefaultOwner, message, link)
}

// PostLinkTo 在 owner 的 feed 上发布链接；未设置的链接字段与空消息不会出现在请求中。
func (t *Template) PostLinkTo(ctx context.Context, ownerID, message string, link model.Link) (string, error) {
	form := link.Params()
	if message != "" {
		form.Set("message", message)
	}
	return t.api.Publish(ctx, ownerOr(ownerID), feedConnection, form)
}

// Publish 以任意命名参数发布，目标 feed 取自载荷本身。
func (t *Template) Publish(ctx context.Context, data *model.PostData) (string, error) {
	if data == nil {
		return "", errors.New("post data required")
	}
	if data.TargetFeedID() == "" {
		return "", errors.New("post data: target feed id required")
	}
	return t.api.Publish(ctx, data.TargetFeedID(), feedConnection, data.RequestParameters())
}

// DeletePost 删除帖子；不存在或无权限时原样返回下层错误。
func (t *Template) DeletePost(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return t.api.Delete(ctx, id)
}

func ownerOr(id string) string {
	if id == "" {
		return DefaultOwner
	}
	return id
}
