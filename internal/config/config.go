// 包 config 负责加载与校验应用配置（settings.yaml），
// 并支持 .env 与 WXDASH_* 环境变量覆盖敏感或随环境变化的字段。
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Dashboard Dashboard `yaml:"DASHBOARD"`
	Export    Export    `yaml:"EXPORT"`
	Delivery  Delivery  `yaml:"DELIVERY"`
	Refresh   Refresh   `yaml:"REFRESH"`
	Storage   Storage   `yaml:"STORAGE"`
	Proxy     Proxy     `yaml:"PROXY"`
	Retry     int       `yaml:"RETRY"`
	LogLevel  string    `yaml:"LOG_LEVEL"`
	LogFormat string    `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale string    `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor  string    `yaml:"LOG_COLOR"`  // auto|always|never
}

// Dashboard 描述仪表盘页面：URL 的查询参数决定是否固定了时间范围。
type Dashboard struct {
	URL          string `yaml:"url"`
	FormSelector string `yaml:"form"`
}

type Export struct {
	// Endpoint 为空时使用仪表盘表单的 action
	Endpoint      string        `yaml:"endpoint"`
	CSRFFields    []string      `yaml:"csrf_fields"`
	Filename      string        `yaml:"filename"`
	LegacyColumns bool          `yaml:"legacy_columns"`
	Timeout       time.Duration `yaml:"timeout"` // 0 表示不设置整体超时
}

type Delivery struct {
	Type   string `yaml:"type"` // dir|bucket
	Dir    string `yaml:"dir"`
	Bucket Bucket `yaml:"bucket"`
}

type Bucket struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseTLS    bool   `yaml:"use_tls"`
	Region    string `yaml:"region"` // 留空时向服务端查询 bucket 所在区域
	Name      string `yaml:"name"`
	Prefix    string `yaml:"prefix"`
}

type Refresh struct {
	Cooldown time.Duration `yaml:"cooldown"`
	Grace    time.Duration `yaml:"grace"`
	Notice   time.Duration `yaml:"notice"`
	// Reload 为 exec（重新执行进程）或 soft（进程内重新加载页面）
	Reload string `yaml:"reload"`
}

type Storage struct {
	Type  string `yaml:"type"` // sqlite|redis|memory
	DSN   string `yaml:"dsn"`
	Redis Redis  `yaml:"redis"`
}

type Redis struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"` // 连接与单次读写超时
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 读取 .env（可选）与 YAML，应用环境变量覆盖后校验并填充默认值。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
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

// applyEnv 用 WXDASH_* 环境变量覆盖对应字段（非空才覆盖）。
func (c *Config) applyEnv() {
	for key, dst := range map[string]*string{
		"WXDASH_DASHBOARD_URL":     &c.Dashboard.URL,
		"WXDASH_EXPORT_ENDPOINT":   &c.Export.Endpoint,
		"WXDASH_DELIVERY_DIR":      &c.Delivery.Dir,
		"WXDASH_BUCKET_ACCESS_KEY": &c.Delivery.Bucket.AccessKey,
		"WXDASH_BUCKET_SECRET_KEY": &c.Delivery.Bucket.SecretKey,
		"WXDASH_STORAGE_DSN":       &c.Storage.DSN,
		"WXDASH_REDIS_ADDR":        &c.Storage.Redis.Addr,
		"WXDASH_REDIS_PASSWORD":    &c.Storage.Redis.Password,
		"WXDASH_LOG_LEVEL":         &c.LogLevel,
	} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
}

// Validate 负责合法性检查与默认值设置。
func (c *Config) Validate() error {
	if c.Dashboard.URL == "" && c.Export.Endpoint == "" {
		return errors.New("DASHBOARD.url or EXPORT.endpoint is required")
	}
	for _, raw := range []string{c.Dashboard.URL, c.Export.Endpoint} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid url: %q", raw)
		}
	}
	if c.Dashboard.FormSelector == "" {
		c.Dashboard.FormSelector = "#download-data-form"
	}
	if len(c.Export.CSRFFields) == 0 {
		c.Export.CSRFFields = []string{"csrfmiddlewaretoken"}
	}
	if c.Export.Filename == "" {
		c.Export.Filename = "weather_data.csv"
	}
	if c.Export.Timeout < 0 {
		return errors.New("EXPORT.timeout must be >= 0")
	}

	if c.Delivery.Type == "" {
		c.Delivery.Type = "dir"
	}
	switch c.Delivery.Type {
	case "dir":
		if c.Delivery.Dir == "" {
			c.Delivery.Dir = "."
		}
	case "bucket":
		if c.Delivery.Bucket.Endpoint == "" || c.Delivery.Bucket.Name == "" {
			return errors.New("DELIVERY.bucket.endpoint and DELIVERY.bucket.name are required")
		}
	default:
		return fmt.Errorf("unsupported delivery type: %s", c.Delivery.Type)
	}

	if c.Refresh.Cooldown < 0 || c.Refresh.Grace < 0 || c.Refresh.Notice < 0 {
		return errors.New("REFRESH durations must be >= 0")
	}
	if c.Refresh.Cooldown == 0 {
		c.Refresh.Cooldown = 30 * time.Minute
	}
	if c.Refresh.Grace == 0 {
		c.Refresh.Grace = 10 * time.Second
	}
	if c.Refresh.Notice == 0 {
		c.Refresh.Notice = 3 * time.Second
	}
	switch c.Refresh.Reload {
	case "":
		c.Refresh.Reload = "exec"
	case "exec", "soft":
	default:
		return fmt.Errorf("unsupported reload mode: %s", c.Refresh.Reload)
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.DSN == "" {
			c.Storage.DSN = "./wxdash.db"
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			c.Storage.Redis.Addr = "localhost:6379"
		}
		if c.Storage.Redis.Namespace == "" {
			c.Storage.Redis.Namespace = "wxdash"
		}
		if c.Storage.Redis.Timeout < 0 {
			return errors.New("STORAGE.redis.timeout must be >= 0")
		}
		if c.Storage.Redis.Timeout == 0 {
			c.Storage.Redis.Timeout = 5 * time.Second
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Retry < 0 {
		c.Retry = 2
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

// EndpointOr 返回配置的导出端点，未配置时使用 fallback（通常是表单 action）。
func (c *Config) EndpointOr(fallback string) string {
	if c.Export.Endpoint != "" {
		return c.Export.Endpoint
	}
	return fallback
}
