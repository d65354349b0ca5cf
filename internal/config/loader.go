package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// 默认配置文件搜索路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mealmebase")
		v.AddConfigPath("/etc/mealmebase")
	}

	// 支持环境变量
	v.SetEnvPrefix("MEALMEBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果是找不到配置文件，则使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 替换环境变量
	expandEnvVars(&config)

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server 默认配置
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.debug", false)

	// Qdrant 默认配置
	v.SetDefault("qdrant.url", "localhost:6334")
	v.SetDefault("qdrant.dimension", 1536)
	v.SetDefault("qdrant.timeout", 15)

	// Embedding 默认配置
	v.SetDefault("embedding.model", "text-embedding-ada-002")

	// LLM 默认配置
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60)

	// Cache 默认配置
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 3600)

	// Admin 默认配置
	v.SetDefault("admin.username", "admin")
}

// expandEnvVars 展开环境变量
func expandEnvVars(config *Config) {
	config.Qdrant.APIKey = os.ExpandEnv(config.Qdrant.APIKey)
	config.Embedding.APIKey = os.ExpandEnv(config.Embedding.APIKey)
	config.LLM.APIKey = os.ExpandEnv(config.LLM.APIKey)
	config.Cache.Password = os.ExpandEnv(config.Cache.Password)
	config.Admin.Password = os.ExpandEnv(config.Admin.Password)
}
