// 包 config 负责加载与校验应用配置（settings.yaml），
// 访问令牌等敏感值可放在 .env 或环境变量中，优先级高于 yaml。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 可覆盖 yaml 的环境变量名。
const (
	EnvAccessToken = "GRAPH_ACCESS_TOKEN"
	EnvAPIVersion  = "GRAPH_API_VERSION"
	EnvBaseURL     = "GRAPH_BASE_URL"
)

// validConnections 与 feed.Connections 保持一致；config 不依赖 feed 包。
var validConnections = map[string]bool{
	"feed": true, "home": true, "statuses": true, "links": true,
	"posts": true, "tagged": true, "checkins": true,
}

type Config struct {
	Graph          Graph           `yaml:"GRAPH"`
	Owner          string          `yaml:"OWNER"`
	PageLimit      int             `yaml:"PAGE_LIMIT"`
	Sync           []SyncSource    `yaml:"SYNC"`
	Crosspost      []CrosspostFeed `yaml:"CROSSPOST"`
	OutdateClean   int             `yaml:"OUTDATE_CLEAN"`
	SimpleMode     bool            `yaml:"SIMPLE_MODE"`
	ResetOnStart   bool            `yaml:"RESET_ON_START"`
	Database       Database        `yaml:"DATABASE"`
	Concurrency    Concurrency     `yaml:"CONCURRENCY"`
	Proxy          Proxy           `yaml:"PROXY"`
	TimeoutSeconds int             `yaml:"TIMEOUT_SECONDS"`
	LogLevel       string          `yaml:"LOG_LEVEL"`
	LogFormat      string          `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale      string          `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor       string          `yaml:"LOG_COLOR"`  // auto|always|never
}

type Graph struct {
	BaseURL     string `yaml:"base_url"`
	APIVersion  string `yaml:"api_version"`
	AccessToken string `yaml:"access_token"`
}

// SyncSource 为一个归档同步来源：owner 的某个连接，最多翻 MaxPages 页。
type SyncSource struct {
	Owner      string `yaml:"owner"`
	Connection string `yaml:"connection"`
	MaxPages   int    `yaml:"max_pages"`
}

// CrosspostFeed 为一个转发来源：订阅地址与目标 owner。
type CrosspostFeed struct {
	FeedURL  string `yaml:"feed_url"`
	Owner    string `yaml:"owner"`
	MaxItems int    `yaml:"max_items"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // ./feed.db
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 读取 .env（可选，与配置文件同目录或工作目录）与 YAML，应用环境变量覆盖后校验。
func Load(path string) (*Config, error) {
	loadDotEnv(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// loadDotEnv 不覆盖已存在的环境变量；文件缺失不是错误。
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if i := strings.LastIndexAny(configPath, `/\`); i >= 0 {
		candidates = append([]string{configPath[:i+1] + ".env"}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAccessToken)); v != "" {
		c.Graph.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIVersion)); v != "" {
		c.Graph.APIVersion = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Graph.BaseURL = v
	}
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	if c.PageLimit < 0 {
		return errors.New("PAGE_LIMIT must be >= 0")
	}
	if c.OutdateClean < 0 {
		return errors.New("OUTDATE_CLEAN must be >= 0")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("TIMEOUT_SECONDS must be >= 0")
	}
	if c.Owner == "" {
		c.Owner = "me"
	}
	if c.PageLimit == 0 {
		c.PageLimit = 25
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 25
	}
	if c.Graph.APIVersion == "" {
		c.Graph.APIVersion = "2.5"
	}
	for i := range c.Sync {
		s := &c.Sync[i]
		if !validConnections[s.Connection] {
			return fmt.Errorf("SYNC[%d]: unknown connection %q", i, s.Connection)
		}
		if s.MaxPages < 0 {
			return fmt.Errorf("SYNC[%d]: max_pages must be >= 0", i)
		}
		if s.Owner == "" {
			s.Owner = c.Owner
		}
		if s.MaxPages == 0 {
			s.MaxPages = 1
		}
	}
	for i := range c.Crosspost {
		cp := &c.Crosspost[i]
		if cp.FeedURL == "" {
			return fmt.Errorf("CROSSPOST[%d]: feed_url required", i)
		}
		if cp.MaxItems < 0 {
			return fmt.Errorf("CROSSPOST[%d]: max_items must be >= 0", i)
		}
		if cp.Owner == "" {
			cp.Owner = c.Owner
		}
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./feed.db"
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 0
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// Timeout 返回单次请求超时。
func (c *Config) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }
