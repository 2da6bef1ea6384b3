package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"AutoViral-Studio/pkg/logger"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 STUDIO_AGENT_ENDPOINT。
const EnvPrefix = "STUDIO"

// Config 是 studiod 启动所需的全部配置。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Logging logger.Config `mapstructure:"logging"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// ServerConfig 控制 REST API 监听。
type ServerConfig struct {
	Address                string `mapstructure:"address"`
	ReadHeaderTimeoutSecs  int    `mapstructure:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// AgentConfig 指定外部 agent 服务。
type AgentConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	APIKey       string `mapstructure:"api_key"`
	APIKeyEnv    string `mapstructure:"api_key_env"`
	UserID       string `mapstructure:"user_id"`
	RegistryFile string `mapstructure:"registry_file"`
}

// StorageConfig 描述生成任务的存储位置。
type StorageConfig struct {
	JobStore JobStoreConfig `mapstructure:"job_store"`
}

// JobStoreConfig 选择内存或 MySQL 任务存储。
type JobStoreConfig struct {
	Driver                 string `mapstructure:"driver"`
	DSN                    string `mapstructure:"dsn"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `mapstructure:"conn_max_lifetime_seconds"`
}

// QueueConfig 选择向处理器投递任务 ID 的队列。
type QueueConfig struct {
	Driver   string         `mapstructure:"driver"`
	Workers  int            `mapstructure:"workers"`
	Capacity int            `mapstructure:"capacity"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// RedisConfig 配置 Redis 列表队列。
type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	Queue            string `mapstructure:"queue"`
	BlockWaitSeconds int    `mapstructure:"block_wait_seconds"`
}

// RabbitMQConfig 配置 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Queue      string `mapstructure:"queue"`
	Prefetch   int    `mapstructure:"prefetch"`
	Durable    bool   `mapstructure:"durable"`
	AutoDelete bool   `mapstructure:"auto_delete"`
}

// RuntimeConfig 保存进程级设置。
type RuntimeConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// Load 读取 JSON 或 YAML 文件 (按扩展名判断) 并应用 STUDIO_* 环境变量覆盖。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := "."
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.resolvePaths(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.shutdown_timeout_seconds", 5)

	v.SetDefault("agent.endpoint", "")
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.api_key_env", "STUDIO_AGENT_API_KEY")
	v.SetDefault("agent.user_id", "")
	v.SetDefault("agent.registry_file", "")

	v.SetDefault("storage.job_store.driver", "memory")
	v.SetDefault("storage.job_store.dsn", "")
	v.SetDefault("storage.job_store.max_open_conns", 20)
	v.SetDefault("storage.job_store.max_idle_conns", 10)
	v.SetDefault("storage.job_store.conn_max_lifetime_seconds", 600)

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.redis.address", "")
	v.SetDefault("queue.redis.password", "")
	v.SetDefault("queue.redis.db", 0)
	v.SetDefault("queue.redis.queue", "studio:jobs")
	v.SetDefault("queue.redis.block_wait_seconds", 5)
	v.SetDefault("queue.rabbitmq.url", "")
	v.SetDefault("queue.rabbitmq.queue", "studio.jobs")
	v.SetDefault("queue.rabbitmq.prefetch", 8)
	v.SetDefault("queue.rabbitmq.durable", true)
	v.SetDefault("queue.rabbitmq.auto_delete", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.audit.enabled", false)
	v.SetDefault("logging.audit.path", "")

	v.SetDefault("runtime.data_dir", "data")
}

// resolvePaths 将相对路径解析为相对配置文件所在目录。
func (c *Config) resolvePaths(baseDir string) {
	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	if c.Agent.RegistryFile != "" {
		c.Agent.RegistryFile = resolve(baseDir, c.Agent.RegistryFile)
	}
	if c.Logging.Audit.Path != "" {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path)
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate 拒绝无法启动的配置组合。
func (c *Config) Validate() error {
	switch c.Storage.JobStore.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.JobStore.DSN) == "" {
			return errors.New("mysql 任务存储需要配置 dsn")
		}
	default:
		return fmt.Errorf("未知的任务存储驱动: %s", c.Storage.JobStore.Driver)
	}
	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Queue.Redis.Address) == "" {
			return errors.New("redis 队列需要配置 address")
		}
	case "rabbitmq":
		if strings.TrimSpace(c.Queue.RabbitMQ.URL) == "" {
			return errors.New("rabbitmq 队列需要配置 url")
		}
	default:
		return fmt.Errorf("未知的队列驱动: %s", c.Queue.Driver)
	}
	return nil
}

// ResolveAPIKey 优先使用内联密钥，否则读取指定的环境变量。
func (a AgentConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(a.APIKey); key != "" {
		return key
	}
	if a.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(a.APIKeyEnv))
}

// ConnMaxLifetime 返回 MySQL 连接最长存活时间。
func (s JobStoreConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(s.ConnMaxLifetimeSeconds) * time.Second
}

// BlockWait 返回 Redis BRPOP 超时。
func (r RedisConfig) BlockWait() time.Duration {
	return time.Duration(r.BlockWaitSeconds) * time.Second
}

// ReadHeaderTimeout 返回读取 HTTP 头的超时。
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSecs) * time.Second
}

// ShutdownTimeout 返回优雅关闭的时限。
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}
