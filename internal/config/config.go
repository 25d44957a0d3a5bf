package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	GoEnv       string // development/production
	ServiceName string // ログやイベントのproducer名

	OrderTxTimeout time.Duration // 注文確定トランザクションの上限

	RedisAddr     string        // 空ならキャッシュ無効
	OrderCacheTTL time.Duration // 注文履歴キャッシュのTTL

	KafkaBrokers    []string // 空ならイベント無効
	KafkaOrderTopic string

	SeedDemo bool // 起動時にデモデータを入れる
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	txTimeout, err := durationOr("ORDER_TX_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := durationOr("ORDER_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	seed, err := boolOr("SEED_DEMO", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "minishop"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		GoEnv:       getenv("GO_ENV", "development"),
		ServiceName: getenv("SERVICE_NAME", "minishop-api"),

		OrderTxTimeout: txTimeout,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		OrderCacheTTL: cacheTTL,

		KafkaBrokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "order.placed"),

		SeedDemo: seed,
	}

	//必須チェック
	if cfg.DatabaseURL == "" && cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.GoEnv != "development" && cfg.GoEnv != "production" {
		return Config{}, fmt.Errorf("GO_ENV must be development or production")
	}
	if cfg.OrderTxTimeout <= 0 {
		return Config{}, fmt.Errorf("ORDER_TX_TIMEOUT must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaOrderTopic == "" {
		return Config{}, fmt.Errorf("KAFKA_ORDER_TOPIC is required")
	}

	return cfg, nil
}

// gormに渡すDSN
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func boolOr(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
