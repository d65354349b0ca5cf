package config

// Config 全局配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP 监听配置
type HTTPConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

// QdrantConfig 向量数据库配置
type QdrantConfig struct {
	URL       string `mapstructure:"url"`        // host:port (gRPC)
	APIKey    string `mapstructure:"api_key"`
	Dimension int    `mapstructure:"dimension"`  // 向量维度，由 Embedding 模型决定，集合创建后不可变更
	Timeout   int    `mapstructure:"timeout"`    // 单次调用超时(秒)
}

// EmbeddingConfig 向量嵌入配置
type EmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"` // 如 "text-embedding-ada-002"
}

// LLMConfig 大模型配置
type LLMConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // 单次生成超时(秒)
}

// CacheConfig Redis 缓存配置(可选，用于缓存 Embedding 结果)
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // 秒
}

// ChatConfig 对话渠道配置
type ChatConfig struct {
	// DefaultAgent 未指定智能体时使用的默认智能体 ID，为空表示不降级
	DefaultAgent string `mapstructure:"default_agent"`
}

// AdminConfig 管理员初始账号配置
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}
