package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go-graph-feed/internal/model"
)

var (
	// ErrEmptyID 表示未提供对象 id。
	ErrEmptyID = errors.New("object id required")

	errVariantMismatch = errors.New("decoded variant does not match endpoint type")
)

// DecodeError 表示按某个类型解码帖子失败；正常情况下不应出现，
// 出现时说明类型解析有缺陷或服务端结构发生了变化。
type DecodeError struct {
	Type model.PostType
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s post: %v", e.Type, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// ResolveType 决定帖子类型：
// 1. forced 非空时直接使用，不看对象自身的 type；
// 2. 否则 type 不区分大小写地匹配已知类型时原样使用（保留大小写）；
// 3. 未识别或缺失时回退为 post。
// reported 为对象自身的 type 字符串（非字符串或缺失时为空）。
func ResolveType(obj map[string]json.RawMessage, forced model.PostType) (resolved model.PostType, reported string) {
	if raw, ok := obj["type"]; ok {
		_ = json.Unmarshal(raw, &reported)
	}
	if forced != "" {
		return forced, reported
	}
	if t, ok := model.LookupPostType(reported); ok {
		return t, reported
	}
	return model.TypePost, reported
}

// DecodePost 将单个 JSON 对象解码为帖子变体：先读出判别字段并解析类型，
// 再按解析结果构造变体；对象自身的 type 不参与结构解码。
func DecodePost(raw []byte, forced model.PostType) (model.Post, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &DecodeError{Type: orPost(forced), Err: err}
	}
	if obj == nil {
		return nil, &DecodeError{Type: orPost(forced), Err: errors.New("null object")}
	}
	t, reported := ResolveType(obj, forced)
	var rp rawPost
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, &DecodeError{Type: t, Err: err}
	}
	base, err := rp.toBase()
	if err != nil {
		return nil, &DecodeError{Type: t, Err: err}
	}
	base.Type = t
	base.ReportedType = reported
	return model.NewPost(base), nil
}

func orPost(t model.PostType) model.PostType {
	if t == "" {
		return model.TypePost
	}
	return t
}

// rawPost 为线上 JSON 的结构；故意不包含 type 字段。
type rawPost struct {
	ID           flexString       `json:"id"`
	From         *model.Reference `json:"from"`
	To           *refList         `json:"to"`
	CreatedTime  string           `json:"created_time"`
	UpdatedTime  string           `json:"updated_time"`
	Message      string           `json:"message"`
	MessageTags  json.RawMessage  `json:"message_tags"`
	Story        string           `json:"story"`
	Link         string           `json:"link"`
	Name         string           `json:"name"`
	Caption      string           `json:"caption"`
	Description  string           `json:"description"`
	Icon         string           `json:"icon"`
	Picture      string           `json:"picture"`
	FullPicture  string           `json:"full_picture"`
	Source       string           `json:"source"`
	ObjectID     flexString       `json:"object_id"`
	StatusType   string           `json:"status_type"`
	Privacy      *model.Privacy   `json:"privacy"`
	Place        *model.Place     `json:"place"`
	WithTags     *refList         `json:"with_tags"`
	Shares       *struct {
		Count int `json:"count"`
	} `json:"shares"`
	Actions      []model.Action   `json:"actions"`
	AdminCreator *model.Reference `json:"admin_creator"`
	Application  *model.Reference `json:"application"`
	Properties   []model.Property `json:"properties"`
	IsHidden     bool             `json:"is_hidden"`
	IsPublished  bool             `json:"is_published"`
}

// refList 为 {"data":[...]} 形式的引用列表。
type refList struct {
	Data []model.Reference `json:"data"`
}

func (r *rawPost) toBase() (model.BasePost, error) {
	b := model.BasePost{
		ID:           string(r.ID),
		From:         r.From,
		Message:      r.Message,
		Story:        r.Story,
		Link:         r.Link,
		Name:         r.Name,
		Caption:      r.Caption,
		Description:  r.Description,
		Icon:         r.Icon,
		Picture:      r.Picture,
		FullPicture:  r.FullPicture,
		Source:       r.Source,
		ObjectID:     string(r.ObjectID),
		StatusType:   r.StatusType,
		Privacy:      r.Privacy,
		Place:        r.Place,
		Actions:      r.Actions,
		AdminCreator: r.AdminCreator,
		Application:  r.Application,
		Properties:   r.Properties,
		IsHidden:     r.IsHidden,
		IsPublished:  r.IsPublished,
	}
	if b.ID == "" {
		return b, errors.New("missing id")
	}
	if r.To != nil {
		b.To = r.To.Data
	}
	if r.WithTags != nil {
		b.WithTags = r.WithTags.Data
	}
	if r.Shares != nil {
		b.Shares = r.Shares.Count
	}
	var err error
	if b.CreatedTime, err = parseGraphTime(r.CreatedTime); err != nil {
		return b, fmt.Errorf("created_time: %w", err)
	}
	if b.UpdatedTime, err = parseGraphTime(r.UpdatedTime); err != nil {
		return b, fmt.Errorf("updated_time: %w", err)
	}
	if b.MessageTags, err = parseMessageTags(r.MessageTags); err != nil {
		return b, fmt.Errorf("message_tags: %w", err)
	}
	return b, nil
}

// Graph API 时间格式，如 2015-03-11T18:40:12+0000。
const graphTimeLayout = "2006-01-02T15:04:05-0700"

func parseGraphTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// 部分接口以 unix 秒返回
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseMessageTags 兼容数组与 {"偏移":[...]} 两种形式，后者按偏移升序展平。
func parseMessageTags(raw json.RawMessage) ([]model.MessageTag, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []model.MessageTag
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var byOffset map[string][]model.MessageTag
	if err := json.Unmarshal(raw, &byOffset); err != nil {
		return nil, err
	}
	for _, tags := range byOffset {
		list = append(list, tags...)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Offset < list[j].Offset })
	return list, nil
}

// flexString 兼容以字符串或数字返回的 id。
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}
