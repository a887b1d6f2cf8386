package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	PSP      ProviderConfig `mapstructure:"psp"`
	KYC      ProviderConfig `mapstructure:"kyc"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents string `mapstructure:"wallet_events"`
	KYCEvents    string `mapstructure:"kyc_events"`
}

// ProviderConfig 外部服务商配置（支付服务商 / KYC 核验机构共用一套结构）
// simulated 为 true 或未配置 api_key 时走内置模拟器，不发起真实外呼
type ProviderConfig struct {
	APIURL        string `mapstructure:"api_url"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Simulated     bool   `mapstructure:"simulated"`
}

type BusinessConfig struct {
	PrimaryCurrency     string `mapstructure:"primary_currency"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"` // 结算轮询任务间隔
	PollStaleMinutes    int    `mapstructure:"poll_stale_minutes"`    // 超过该时长未落终态的交易才会被轮询
	MaxRetryCount       int    `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if config.Business.PrimaryCurrency == "" {
		config.Business.PrimaryCurrency = "AED"
	}

	GlobalConfig = config
	return config
}
