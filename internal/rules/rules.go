// 包 rules 负责加载并提供链接预览规则（rules.yaml），
// 以预设名组织 CSS 选择器，并可按站点域名匹配，用于补全链接帖的标题/摘要/配图。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个预设：适用的域名与链接预览选择器。
type Preset struct {
	Hosts       []string     `yaml:"hosts"`
	LinkPreview *LinkPreview `yaml:"link_preview"`
}

// LinkPreview 描述链接页的选择器：
// - name/caption/description/picture：取文本或属性（支持 meta[property='og:title']@content）
// - 每项可用 "||" 连接多个候选
type LinkPreview struct {
	Name        string `yaml:"name"`
	Caption     string `yaml:"caption"`
	Description string `yaml:"description"`
	Picture     string `yaml:"picture"`
}

func Load(path string) (*Rules, error) {
	// 从文件加载 YAML 到 Rules.Presets
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	// 不区分大小写匹配
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}

// ForHost 返回 hosts 命中该域名的预设（含子域名），否则回退到 default。
func (r *Rules) ForHost(host string) (Preset, bool) {
	if r == nil {
		return Preset{}, false
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, p := range r.Presets {
		for _, h := range p.Hosts {
			h = strings.ToLower(strings.TrimPrefix(h, "www."))
			if host == h || strings.HasSuffix(host, "."+h) {
				return p, true
			}
		}
	}
	return r.GetPreset("")
}
