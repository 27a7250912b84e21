package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string              `mapstructure:"port"`
	Log                 logger.LogConfig    `mapstructure:"log"`
	Database            DatabaseConfig      `mapstructure:"database"`
	MongoDB             MongoDBConfig       `mapstructure:"mongodb"`
	S3                  S3Config            `mapstructure:"s3"`
	OCR                 OCRConfig           `mapstructure:"ocr"`
	LLM                 LLMConfig           `mapstructure:"llm"`
	Gemini              GeminiConfig        `mapstructure:"gemini"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	Redis               RedisConfig         `mapstructure:"redis"`
	JWT                 JWTConfig           `mapstructure:"jwt"`
	CORS                CORSConfig          `mapstructure:"cors"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint points the client at an S3-compatible server such as MinIO.
	Endpoint     string `mapstructure:"endpoint"`
	CustomDomain string `mapstructure:"custom_domain"`
}

type OCRConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// RequestTimeout is forwarded to the OCR service, in seconds.
	RequestTimeout int           `mapstructure:"request_timeout"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl"`
}

type LLMConfig struct {
	Provider         string `mapstructure:"provider"` // openai or gemini
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	Model            string `mapstructure:"model"`
	HistoryLimit     int    `mapstructure:"history_limit"`
	ContextCharLimit int    `mapstructure:"context_char_limit"`
}

type GeminiConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
	Model   string   `mapstructure:"model"`
}

type WeaviateStoreConfig struct {
	Host         string       `mapstructure:"host"`
	APIKey       string       `mapstructure:"api_key"`
	Text2Vec     string       `mapstructure:"text2vec"`
	ModuleConfig ModuleConfig `mapstructure:"module_config"`
}

type ModuleConfig map[string]interface{}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.time_format", time.RFC3339)
	v.SetDefault("log.output", "stdout")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 2*time.Minute)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "pdfnote")

	v.SetDefault("s3.region", "ap-northeast-2")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.custom_domain", "")

	v.SetDefault("ocr.endpoint", "")
	v.SetDefault("ocr.timeout", 180*time.Second)
	v.SetDefault("ocr.request_timeout", 120)
	v.SetDefault("ocr.presign_ttl", 5*time.Minute)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.upstage.ai/v1/solar")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "solar-1-mini-chat")
	v.SetDefault("llm.history_limit", 10)
	v.SetDefault("llm.context_char_limit", 6000)

	v.SetDefault("gemini.api_keys", []string{})
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("weaviate_store_config.host", "")
	v.SetDefault("weaviate_store_config.api_key", "")
	v.SetDefault("weaviate_store_config.text2vec", "text2vec-openai")

	v.SetDefault("redis.url", "")

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 60*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// DATABASE_URL overrides database.url and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// An empty path means environment-only configuration.
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Names used by existing deployments.
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "UPSTAGE_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("weaviate_store_config.api_key", "WEAVIATE_APIKEY")
	_ = v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("s3.bucket", "S3_BUCKET", "AWS_STORAGE_BUCKET_NAME")
	_ = v.BindEnv("s3.region", "S3_REGION", "AWS_S3_REGION_NAME")
	_ = v.BindEnv("ocr.endpoint", "OCR_ENDPOINT", "OCR_ANALYZE_URL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// Validate checks the settings every command needs. Optional backends
// (weaviate, redis, gemini) are left alone when empty.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "database.url")
	}
	if c.S3.Bucket == "" {
		missing = append(missing, "s3.bucket")
	}
	if c.OCR.Endpoint == "" {
		missing = append(missing, "ocr.endpoint")
	}
	if c.JWT.AccessSecret == "" {
		missing = append(missing, "jwt.access_secret")
	}
	if c.JWT.RefreshSecret == "" {
		missing = append(missing, "jwt.refresh_secret")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			missing = append(missing, "llm.api_key")
		}
	case "gemini":
		if len(c.Gemini.APIKeys) == 0 {
			missing = append(missing, "gemini.api_keys")
		}
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("ocr.timeout must be positive")
	}
	return nil
}

func (c *Config) GetLoggerConfig() logger.LogConfig {
	return c.Log
}
