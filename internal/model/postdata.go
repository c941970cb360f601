package model

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Link 为链接附件；空字段在发布时省略。
type Link struct {
	Link        string `json:"link"`
	Name        string `json:"name,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
	Picture     string `json:"picture,omitempty"`
}

// Params 返回已设置字段的表单参数。
func (l Link) Params() url.Values {
	v := url.Values{}
	setIf(v, "link", l.Link)
	setIf(v, "name", l.Name)
	setIf(v, "caption", l.Caption)
	setIf(v, "description", l.Description)
	setIf(v, "picture", l.Picture)
	return v
}

// PostData 为发布帖子的构建器，一次发布后即丢弃。
type PostData struct {
	target string
	params url.Values
}

// NewPostData 以目标 feed 所属对象 id 创建载荷。
func NewPostData(targetFeedID string) *PostData {
	return &PostData{target: targetFeedID, params: url.Values{}}
}

func (d *PostData) TargetFeedID() string { return d.target }

func (d *PostData) Message(msg string) *PostData { return d.Param("message", msg) }

// Link 设置链接附件（空字段省略）。
func (d *PostData) Link(link, picture, name, caption, description string) *PostData {
	for k, vs := range (Link{Link: link, Name: name, Caption: caption, Description: description, Picture: picture}).Params() {
		d.params[k] = vs
	}
	return d
}

func (d *PostData) Place(placeID string) *PostData { return d.Param("place", placeID) }

// Tags 设置被标记的用户 id，逗号拼接。
func (d *PostData) Tags(ids ...string) *PostData { return d.Param("tags", strings.Join(ids, ",")) }

// Privacy 设置可见性，如 EVERYONE/ALL_FRIENDS/SELF。
func (d *PostData) Privacy(value string) *PostData {
	if value == "" {
		return d
	}
	b, _ := json.Marshal(Privacy{Value: value})
	return d.Param("privacy", string(b))
}

func (d *PostData) Published(published bool) *PostData {
	d.params.Set("published", strconv.FormatBool(published))
	return d
}

// ScheduledPublishTime 设置定时发布（unix 秒）。
func (d *PostData) ScheduledPublishTime(t time.Time) *PostData {
	if t.IsZero() {
		return d
	}
	d.params.Set("scheduled_publish_time", strconv.FormatInt(t.Unix(), 10))
	return d
}

// Param 设置任意命名参数；空值视为未设置。
func (d *PostData) Param(key, value string) *PostData {
	if value == "" {
		d.params.Del(key)
		return d
	}
	d.params.Set(key, value)
	return d
}

// RequestParameters 返回参数副本。
func (d *PostData) RequestParameters() url.Values {
	out := make(url.Values, len(d.params))
	for k, vs := range d.params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
