// 包 model 定义 Graph API feed 资源的数据模型：
// - Post 为帖子的标签联合（按 Type 区分具体变体）
// - PagingParameters / Page 描述分页请求与结果
// - Link / PostData 为写入侧载荷
package model

import (
	"strings"
	"time"
)

// PostType 为帖子类型标签（判别字段）。
type PostType string

const (
	TypePost    PostType = "post" // 通用回退类型
	TypeStatus  PostType = "status"
	TypeLink    PostType = "link"
	TypePhoto   PostType = "photo"
	TypeVideo   PostType = "video"
	TypeNote    PostType = "note"
	TypeEvent   PostType = "event"
	TypeOffer   PostType = "offer"
	TypeAlbum   PostType = "album"
	TypeCheckin PostType = "checkin"
)

var knownTypes = []PostType{
	TypePost, TypeStatus, TypeLink, TypePhoto, TypeVideo,
	TypeNote, TypeEvent, TypeOffer, TypeAlbum, TypeCheckin,
}

// LookupPostType 不区分大小写地匹配已知类型；匹配成功时返回原始字符串（保留大小写）。
func LookupPostType(s string) (PostType, bool) {
	for _, t := range knownTypes {
		if strings.EqualFold(s, string(t)) {
			return PostType(s), true
		}
	}
	return "", false
}

// Kind 返回规范化（小写）后的类型，用于选择变体。
func (t PostType) Kind() PostType { return PostType(strings.ToLower(string(t))) }

// Reference 为对其他 Graph 对象（用户/主页/应用）的引用。
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Action 为帖子上的可执行动作（如 Comment/Like）。
type Action struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Property 为附件的额外属性（如视频时长）。
type Property struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

// MessageTag 为正文中 @ 到的对象及其位置。
type MessageTag struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Privacy 为帖子的可见性设置。
type Privacy struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Friends     string `json:"friends,omitempty"`
	Allow       string `json:"allow,omitempty"`
	Deny        string `json:"deny,omitempty"`
}

// Location 为地点的地理信息。
type Location struct {
	Street    string  `json:"street,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Zip       string  `json:"zip,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Place 为签到/带位置帖子的地点。
type Place struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location *Location `json:"location,omitempty"`
}

// BasePost 持有所有帖子变体共享的属性。
type BasePost struct {
	ID           string       `json:"id"`
	Type         PostType     `json:"type"`
	ReportedType string       `json:"reported_type,omitempty"` // 服务端原始 type（未识别时也保留）
	From         *Reference   `json:"from,omitempty"`
	To           []Reference  `json:"to,omitempty"`
	CreatedTime  time.Time    `json:"created_time"`
	UpdatedTime  time.Time    `json:"updated_time"`
	Message      string       `json:"message,omitempty"`
	MessageTags  []MessageTag `json:"message_tags,omitempty"`
	Story        string       `json:"story,omitempty"`
	Link         string       `json:"link,omitempty"`
	Name         string       `json:"name,omitempty"`
	Caption      string       `json:"caption,omitempty"`
	Description  string       `json:"description,omitempty"`
	Icon         string       `json:"icon,omitempty"`
	Picture      string       `json:"picture,omitempty"`
	FullPicture  string       `json:"full_picture,omitempty"`
	Source       string       `json:"source,omitempty"`
	ObjectID     string       `json:"object_id,omitempty"`
	StatusType   string       `json:"status_type,omitempty"`
	Privacy      *Privacy     `json:"privacy,omitempty"`
	Place        *Place       `json:"place,omitempty"`
	WithTags     []Reference  `json:"with_tags,omitempty"`
	Shares       int          `json:"shares,omitempty"`
	Actions      []Action     `json:"actions,omitempty"`
	AdminCreator *Reference   `json:"admin_creator,omitempty"`
	Application  *Reference   `json:"application,omitempty"`
	Properties   []Property   `json:"properties,omitempty"`
	IsHidden     bool         `json:"is_hidden,omitempty"`
	IsPublished  bool         `json:"is_published,omitempty"`
}

// Base 返回共享属性；嵌入后由各变体自动获得。
func (p *BasePost) Base() *BasePost { return p }

func (p *BasePost) sealed() {}

// Post 为帖子标签联合，仅由本包内的变体实现。
type Post interface {
	Base() *BasePost
	sealed()
}

// GenericPost 为通用帖子，也承载 note/event/offer/album 等无额外结构的类型。
type GenericPost struct{ BasePost }

// StatusPost 为状态更新。
type StatusPost struct{ BasePost }

// LinkPost 为分享链接的帖子。
type LinkPost struct{ BasePost }

// Attachment 返回链接附件。
func (p *LinkPost) Attachment() Link {
	return Link{Link: p.BasePost.Link, Name: p.Name, Caption: p.Caption, Description: p.Description, Picture: p.Picture}
}

// PhotoPost 为照片帖子。
type PhotoPost struct{ BasePost }

// Photo 返回照片对象 id 与图片地址（优先大图）。
func (p *PhotoPost) Photo() (objectID, url string) {
	if p.FullPicture != "" {
		return p.ObjectID, p.FullPicture
	}
	return p.ObjectID, p.Picture
}

// VideoPost 为视频帖子。
type VideoPost struct{ BasePost }

// VideoSource 返回视频播放地址。
func (p *VideoPost) VideoSource() string { return p.Source }

// CheckinPost 为签到帖子。
type CheckinPost struct{ BasePost }

// Location 返回签到地点，可能为 nil。
func (p *CheckinPost) Location() *Place { return p.Place }

// NewPost 按类型标签构造对应变体，base.Type 必须已解析。
func NewPost(base BasePost) Post {
	switch base.Type.Kind() {
	case TypeStatus:
		return &StatusPost{base}
	case TypeLink:
		return &LinkPost{base}
	case TypePhoto:
		return &PhotoPost{base}
	case TypeVideo:
		return &VideoPost{base}
	case TypeCheckin:
		return &CheckinPost{base}
	default:
		return &GenericPost{base}
	}
}
