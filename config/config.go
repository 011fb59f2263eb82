package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Drivers de armazenamento suportados pelo ledger de lotes.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config armazena todas as configurações do serviço DairyStock.
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string

	// Armazenamento do ledger ("postgres" ou "memory")
	StorageDriver string

	// Banco de Dados (PostgreSQL)
	DatabaseURL string
	DBTimeout   time.Duration

	// Cache (Redis)
	RedisAddr       string
	CacheTimeout    time.Duration
	StockSummaryTTL time.Duration

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Alocação FIFO: novas tentativas em caso de conflito de escrita
	AllocationMaxRetries int
	AllocationRetryBase  time.Duration
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
func LoadConfig() *Config {
	cfg := &Config{
		// 1. Geral
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageDriverPostgres),

		// 2. Banco de Dados (PostgreSQL)
		DBTimeout: getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		// 3. Cache (Redis)
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTimeout:    getDurationEnv("CACHE_TIMEOUT_SEC", 10) * time.Second,
		StockSummaryTTL: getDurationEnv("STOCK_SUMMARY_TTL_SEC", 30) * time.Second,

		// 4. Rate Limiting
		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		// 5. Alocação
		AllocationMaxRetries: getIntEnv("ALLOCATION_MAX_RETRIES", 3),
		AllocationRetryBase:  getDurationEnv("ALLOCATION_RETRY_BASE_MS", 20) * time.Millisecond,
	}

	// Sem credenciais de DB a aplicação não inicia quando o ledger é o PostgreSQL.
	if cfg.StorageDriver == StorageDriverPostgres {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	} else {
		cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	}

	if cfg.AllocationMaxRetries < 0 {
		log.Printf("⚠️ Aviso: ALLOCATION_MAX_RETRIES negativo (%d). Usando 0.", cfg.AllocationMaxRetries)
		cfg.AllocationMaxRetries = 0
	}

	return cfg
}

// Funções Helpers (Auxiliares)

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", key)
	return ""
}

// getDurationEnv lê uma variável de ambiente numérica e retorna-a como time.Duration.
func getDurationEnv(key string, defaultValue int) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return time.Duration(defaultValue)
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return time.Duration(defaultValue)
	}
	return time.Duration(value)
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
