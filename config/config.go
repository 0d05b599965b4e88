package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// LineConfig holds the LINE Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret string `mapstructure:"channel_secret"`
	ChannelToken  string `mapstructure:"channel_token"`
	APIBaseURL    string `mapstructure:"api_base_url"` // 預設 https://api.line.me，測試時可覆寫
}

// OpenAIConfig holds the backend service credentials.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AssistantConfig describes the hosted assistant persona and its knowledge base.
type AssistantConfig struct {
	ID            string `mapstructure:"id"`
	Name          string `mapstructure:"name"`
	VectorStoreID string `mapstructure:"vector_store_id"` // 留空則停用知識庫搜尋
}

// Messages are the fixed user-facing reply strings.
type Messages struct {
	Introduction  string `mapstructure:"introduction"`
	LimitExceeded string `mapstructure:"limit_exceeded"`
	Rejection     string `mapstructure:"rejection"`
	Apology       string `mapstructure:"apology"`
	NotFound      string `mapstructure:"not_found"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string // "memory" 或 SQLite 檔案路徑
	}
	Line       LineConfig      `mapstructure:"line"`
	OpenAI     OpenAIConfig    `mapstructure:"openai"`
	Assistant  AssistantConfig `mapstructure:"assistant"`
	DailyLimit int             `mapstructure:"daily_limit"` // 每位用戶每日可詢問次數
	Messages   Messages        `mapstructure:"messages"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration from file and environment variables.
// Missing LINE channel credentials are a fatal startup condition: the
// process must not start serving webhooks it cannot verify or reply to.
func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../config") // For running from locations like tests

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.dsn", "memory")
	viper.SetDefault("line.api_base_url", "https://api.line.me")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("assistant.id", "asst_ShZXAJwKlokkj9rNhRi2f6pG")
	viper.SetDefault("assistant.name", "CCHDM")
	viper.SetDefault("assistant.vector_store_id", "vs_G4UCAxMLaXFL4WcwwtUjcJqg")
	viper.SetDefault("daily_limit", 5)
	viper.SetDefault("messages.limit_exceeded", "您今天的用量已經超過，請明天再詢問。")
	viper.SetDefault("messages.rejection", "您的問題已經超出我的功能，我無法進行回覆，請重新提出您的問題。")
	viper.SetDefault("messages.apology", "對不起，系統忙碌中無法回覆您的問題，請稍後再試。")
	viper.SetDefault("messages.not_found", "對不起，我無法找到相關的資訊。")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("WARN: [Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
		} else {
			log.Fatalf("FATAL: [Config] Error reading configuration file: %v", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("FATAL: [Config] Failed to unmarshal configuration into AppConfig struct: %v", err)
	}

	// Environment variable overrides. The credential variable names match the
	// LINE/OpenAI consoles' conventions so deployments only need the platform's
	// own secrets.
	if port := os.Getenv("SERVER_PORT"); port != "" {
		AppConfig.Server.Port = port
		log.Printf("INFO: [Config] Server port overridden by environment variable SERVER_PORT: %s", port)
	}
	if secret := os.Getenv("ChannelSecret"); secret != "" {
		AppConfig.Line.ChannelSecret = secret
	}
	if token := os.Getenv("ChannelAccessToken"); token != "" {
		AppConfig.Line.ChannelToken = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		AppConfig.OpenAI.APIKey = key
	}

	if AppConfig.Line.ChannelSecret == "" {
		log.Fatalf("FATAL: [Config] Specify ChannelSecret as environment variable.")
	}
	if AppConfig.Line.ChannelToken == "" {
		log.Fatalf("FATAL: [Config] Specify ChannelAccessToken as environment variable.")
	}
	if AppConfig.OpenAI.APIKey == "" {
		log.Println("WARN: [Config] OPENAI_API_KEY is not set. Backend calls will fail and users will receive the apology reply.")
	}

	if AppConfig.DailyLimit <= 0 {
		log.Printf("WARN: [Config] daily_limit %d is not positive, falling back to 5.", AppConfig.DailyLimit)
		AppConfig.DailyLimit = 5
	}

	// 介紹訊息預設依助理名稱組合，config.yaml 可整段覆寫。
	if AppConfig.Messages.Introduction == "" {
		AppConfig.Messages.Introduction = fmt.Sprintf(
			"我是彰化基督教醫院 內分泌科小助理 %s，您有任何關於：糖尿病、高血壓及內分泌的相關問題都可以問我。",
			AppConfig.Assistant.Name,
		)
	}

	log.Println("INFO: [Config] Configuration loading complete.")
}
