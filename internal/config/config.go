package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 OpenMint 在启动阶段需要加载的核心配置。
type Config struct {
	Governance GovernanceConfig `json:"governance"`
	Logging    LoggingConfig    `json:"logging"`
	Notify     NotifyConfig     `json:"notify"`
	Journal    JournalConfig    `json:"journal"`
	Metrics    MetricsConfig    `json:"metrics"`
	Plugins    PluginsConfig    `json:"plugins"`
	Runtime    RuntimeConfig    `json:"runtime"`
}

// GovernanceConfig 指定治理身份与声明式资产文件。
type GovernanceConfig struct {
	Owner      string `json:"owner"`
	AssetsFile string `json:"assets_file"`
	OpsFile    string `json:"ops_file"`
}

// LoggingConfig 对应 pkg/logger 的初始化参数。
type LoggingConfig struct {
	Level   string         `json:"level"`
	Format  string         `json:"format"`
	Outputs []string       `json:"outputs"`
	Audit   AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志文件及其滚动策略。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// NotifyConfig 描述事件投递渠道及其连接信息。
type NotifyConfig struct {
	Sinks    []string           `json:"sinks"`
	Redis    RedisSinkConfig    `json:"redis"`
	RabbitMQ RabbitMQSinkConfig `json:"rabbitmq"`
}

// RedisSinkConfig 描述 Redis 渠道的连接参数。
type RedisSinkConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	List     string `json:"list"`
}

// RabbitMQSinkConfig 描述 RabbitMQ 渠道的连接参数。
type RabbitMQSinkConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// JournalConfig 描述审计日志的持久化后端。
type JournalConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// MetricsConfig 控制指标监听服务。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// PluginsConfig 指向插件管理器的 YAML 配置，留空表示不加载插件。
type PluginsConfig struct {
	File string `json:"file"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
// 相对路径统一解析为相对配置文件所在目录。
func (c *Config) applyDefaults(baseDir string) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled {
		if c.Logging.Audit.Path == "" {
			c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
		} else if !filepath.IsAbs(c.Logging.Audit.Path) {
			c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
		}
	}

	if len(c.Notify.Sinks) == 0 {
		c.Notify.Sinks = []string{"log"}
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9091"
	}

	if c.Governance.AssetsFile != "" && !filepath.IsAbs(c.Governance.AssetsFile) {
		c.Governance.AssetsFile = filepath.Join(baseDir, c.Governance.AssetsFile)
	}
	if c.Governance.OpsFile != "" && !filepath.IsAbs(c.Governance.OpsFile) {
		c.Governance.OpsFile = filepath.Join(baseDir, c.Governance.OpsFile)
	}
	if c.Plugins.File != "" && !filepath.IsAbs(c.Plugins.File) {
		c.Plugins.File = filepath.Join(baseDir, c.Plugins.File)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
