package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 进程级配置，启动时加载一次，之后只读
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite / postgres
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LedgerConfig 账本节点接入参数（gas 预算与超时对齐原合约调用）
type LedgerConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ContractAddress string        `mapstructure:"contract_address"`
	SignerAddress   string        `mapstructure:"signer_address"`
	AppendGas       uint64        `mapstructure:"append_gas"`
	UpvoteGas       uint64        `mapstructure:"upvote_gas"`
	AppendTimeout   time.Duration `mapstructure:"append_timeout"`
	UpvoteTimeout   time.Duration `mapstructure:"upvote_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Load 读取 config.yaml（可选）并叠加环境变量（CREDITCHAIN_ 前缀）
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("creditchain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可缺省，仅环境变量 + 默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "creditchain.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 30*time.Second)
	v.SetDefault("ledger.endpoint", "http://localhost:8545")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.signer_address", "")
	v.SetDefault("ledger.append_gas", 300000)
	v.SetDefault("ledger.upvote_gas", 200000)
	v.SetDefault("ledger.append_timeout", 8*time.Second)
	v.SetDefault("ledger.upvote_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("ratelimit.rps", 0.334)
	v.SetDefault("ratelimit.burst", 2)
}
