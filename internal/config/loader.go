// Package config 提供配置加载功能
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

const defaultConfigDir = "configs"

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom(defaultConfigDir)
}

// LoadFrom 从指定目录加载配置
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
// 未定义且无默认值的变量原样保留
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	var errs []error
	if c.Generation.Cost <= 0 {
		errs = append(errs, fmt.Errorf("generation.cost must be positive, got %d", c.Generation.Cost))
	}
	if c.Generation.Outline.MaxRetries < 0 || c.Generation.Outline.SimplifiedMaxRetries < 0 || c.Generation.Content.MaxRetries < 0 {
		errs = append(errs, errors.New("generation max_retries must not be negative"))
	}
	for _, role := range []struct{ key, name string }{
		{"llm.outline_provider", c.LLM.OutlineProvider},
		{"llm.content_provider", c.LLM.ContentProvider},
	} {
		if role.name == "" {
			errs = append(errs, fmt.Errorf("%s is required", role.key))
			continue
		}
		p, ok := c.LLM.Provider(role.name)
		if !ok {
			errs = append(errs, fmt.Errorf("%s references unknown provider %q", role.key, role.name))
			continue
		}
		switch p.Type {
		case "", ProviderTypeOpenAI, ProviderTypeAnthropic:
		default:
			errs = append(errs, fmt.Errorf("llm.providers.%s.type %q is not supported", role.name, p.Type))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "content-gen-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "300s")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.request_timeout", "280s")

	// 数据库默认值
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "content_gen")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// LLM 默认值
	v.SetDefault("llm.outline_provider", "openai")
	v.SetDefault("llm.content_provider", "anthropic")

	// 生成流水线默认值
	v.SetDefault("generation.cost", 4)
	v.SetDefault("generation.quota_cache_ttl", "30s")
	v.SetDefault("generation.outline.max_retries", 2)
	v.SetDefault("generation.outline.simplified_max_retries", 1)
	v.SetDefault("generation.outline.base_delay", "1s")
	v.SetDefault("generation.outline.max_delay", "8s")
	v.SetDefault("generation.outline.jitter", 0.2)
	v.SetDefault("generation.outline.max_tokens", 4000)
	v.SetDefault("generation.outline.simplified_max_tokens", 1500)
	v.SetDefault("generation.outline.temperature", 0.7)
	v.SetDefault("generation.outline.top_p", 0.9)
	v.SetDefault("generation.content.max_retries", 2)
	v.SetDefault("generation.content.base_delay", "2s")
	v.SetDefault("generation.content.max_delay", "15s")
	v.SetDefault("generation.content.jitter", 0.2)
	v.SetDefault("generation.content.min_length", 200)
	v.SetDefault("generation.content.tokens_per_word", 2.0)
	v.SetDefault("generation.content.max_tokens_cap", 8000)
	v.SetDefault("generation.content.temperature", 0.7)
	v.SetDefault("generation.content.frequency_penalty", 0.3)
	v.SetDefault("generation.content.presence_penalty", 0.1)

	// 消息队列默认值
	v.SetDefault("messaging.redis_stream.enabled", true)
	v.SetDefault("messaging.redis_stream.max_len", 100000)
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 5)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "30s")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output", "stdout")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.jwt.issuer", "content-gen-api")
	v.SetDefault("security.jwt.expiration", "24h")
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 10)
	v.SetDefault("security.rate_limit.window", "1m")
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Authorization", "Content-Type", "X-Request-ID"})
}
