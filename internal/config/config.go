// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，仅在 main 中读取后向下注入，业务代码不直接依赖它。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
	Consultants   ConsultantsConfig   `mapstructure:"consultants"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Intent        IntentConfig        `mapstructure:"intent"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig 控制 API 是否需要 JWT。关闭时会话 ID 由请求体携带。
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
	// AccessTokenExpireHours 仅供 kbctl 签发调试 token 使用
	AccessTokenExpireHours int `mapstructure:"access_token_expire_hours"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置，DSN 为空时不记录对话审计日志。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置，Brokers 为空时异步入库不可用。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，Endpoint 为空时上传的原始文件不归档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。APIKey 为空视为"未配置"。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Prompt         LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 按回答策略区分的生成参数。
type LLMGenerationConfig struct {
	BaseTemperature     float64 `mapstructure:"base_temperature"`
	BaseMaxTokens       int     `mapstructure:"base_max_tokens"`
	FallbackTemperature float64 `mapstructure:"fallback_temperature"`
	FallbackMaxTokens   int     `mapstructure:"fallback_max_tokens"`
	FreeTemperature     float64 `mapstructure:"free_temperature"`
	FreeMaxTokens       int     `mapstructure:"free_max_tokens"`
}

// LLMPromptConfig 配置助手身份与提示词片段（可选）。
type LLMPromptConfig struct {
	AssistantName string `mapstructure:"assistant_name"`
	Persona       string `mapstructure:"persona"`
	Mission       string `mapstructure:"mission"`
	Rules         string `mapstructure:"rules"`
}

// KnowledgeConfig 描述知识库入库与检索参数。
type KnowledgeConfig struct {
	DocsDir         string   `mapstructure:"docs_dir"`
	PersistDir      string   `mapstructure:"persist_dir"`
	Store           string   `mapstructure:"store"` // "elasticsearch" 或 "memory"
	ChunkSize       int      `mapstructure:"chunk_size"`
	ChunkOverlap    int      `mapstructure:"chunk_overlap"`
	Extensions      []string `mapstructure:"extensions"`
	TopK            int      `mapstructure:"top_k"`
	FallbackLimit   int      `mapstructure:"fallback_limit"`
	FallbackTermK   int      `mapstructure:"fallback_term_k"`
	FallbackTerms   int      `mapstructure:"fallback_terms"`
	Watch           bool     `mapstructure:"watch"`
	IngestOnStartup bool     `mapstructure:"ingest_on_startup"`
}

// ConsultantsConfig 描述顾问名册的位置与返回数量。
type ConsultantsConfig struct {
	Dir   string `mapstructure:"dir"`
	Limit int    `mapstructure:"limit"`
}

// ChatConfig 描述会话历史策略。
type ChatConfig struct {
	HistoryStore   string `mapstructure:"history_store"` // "redis" 或 "memory"
	MaxTurns       int    `mapstructure:"max_turns"`
	ContextTurns   int    `mapstructure:"context_turns"`
	SessionTimeout string `mapstructure:"session_timeout"`
}

// Timeout 解析会话超时时间，解析失败时回退到 30 分钟。
func (c ChatConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// IntentConfig 指向意图规则表文件，为空时使用内置规则。
type IntentConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// Init 从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取配置文件并叠加环境变量覆盖（例如 CONSULTOR_LLM_API_KEY）。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("consultor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("elasticsearch.index_name", "documentos_sebrae")
	v.SetDefault("kafka.group_id", "consultor-ia-go-consumer")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.generation.base_temperature", 0.2)
	v.SetDefault("llm.generation.base_max_tokens", 2500)
	v.SetDefault("llm.generation.fallback_temperature", 0.4)
	v.SetDefault("llm.generation.fallback_max_tokens", 1500)
	v.SetDefault("llm.generation.free_temperature", 0.7)
	v.SetDefault("llm.generation.free_max_tokens", 1500)
	v.SetDefault("knowledge.docs_dir", "./dados/documentos")
	v.SetDefault("knowledge.persist_dir", "./.knowledge")
	v.SetDefault("knowledge.store", "elasticsearch")
	v.SetDefault("knowledge.chunk_size", 1000)
	v.SetDefault("knowledge.chunk_overlap", 200)
	v.SetDefault("knowledge.extensions", []string{".pdf", ".docx", ".xlsx", ".txt", ".md"})
	v.SetDefault("knowledge.top_k", 8)
	v.SetDefault("knowledge.fallback_limit", 10)
	v.SetDefault("knowledge.fallback_term_k", 5)
	v.SetDefault("knowledge.fallback_terms", 3)
	v.SetDefault("consultants.dir", "./dados/documentos/Consultores")
	v.SetDefault("consultants.limit", 3)
	v.SetDefault("chat.history_store", "memory")
	v.SetDefault("chat.max_turns", 10)
	v.SetDefault("chat.context_turns", 3)
	v.SetDefault("chat.session_timeout", "30m")
}
