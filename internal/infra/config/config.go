package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port string
}

// DBConfig holds catalog database connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int32
	MinConns int32
}

// DSN renders the postgres connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// RedisConfig holds session store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServiceConfig holds connection settings for one external oracle.
type ServiceConfig struct {
	URL     string
	Model   string
	Timeout int // seconds
}

// PipelineConfig carries the tunable pipeline constants. The confidence and
// web-fallback thresholds have no documented derivation, so they live here
// as configuration rather than hardcoded behavior.
type PipelineConfig struct {
	SearchLimit         int     // raw candidates fetched per catalog query
	RerankTopK          int     // candidates surviving the rerank stage
	BrandCap            int     // max items per brand inside the diversity window
	DiversityWindow     int     // top-N window the brand cap applies to
	OriginCap           int     // per-sub-query cap in the origin balance pass
	OracleImageCap      int     // image-bearing prefix sent to the match oracle
	FinalBound          int     // merged result list bound
	MaxSubQueries       int     // broad-intent fan-out cap
	MinValidForWeb      int     // valid catalog candidates below which web fallback runs
	WebSearchLimit      int     // results requested from the web source
	ConfidenceThreshold float64 // below this, the turn short-circuits to a nudge
}

// CacheConfig bounds the process-scoped TTL caches.
type CacheConfig struct {
	Size          int
	TrendsTTL     int // seconds
	WeatherTTL    int // seconds
	WebResultsTTL int // seconds
}

type Config struct {
	Env    string
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig

	Embedder    ServiceConfig
	RankOracle  ServiceConfig
	MatchOracle ServiceConfig
	Planner     ServiceConfig
	WebSearch   ServiceConfig

	WeatherURL string
	GeocodeURL string

	// Client-side rate limit on the match oracle.
	MatchOracleRate  float64 // requests per second
	MatchOracleBurst int

	Pipeline PipelineConfig
	Cache    CacheConfig
}

func Load() *Config {
	return &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Port: getEnv("PORT", "9020"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "catalog-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "stylist_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "stylist_password"),
			Name:     getEnv("DB_NAME", "catalog_db"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "session-store:6379"),
			Password: getSecret("REDIS_PASSWORD", "REDIS_PASSWORD_FILE", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Embedder: ServiceConfig{
			URL:     getEnv("EMBEDDER_URL", "http://embedder:11434"),
			Model:   getEnv("EMBEDDING_MODEL", "catalog-embed-v1"),
			Timeout: getEnvInt("EMBEDDER_TIMEOUT", 30),
		},
		RankOracle: ServiceConfig{
			URL:     getEnv("RANK_ORACLE_URL", "http://rank-oracle:8001"),
			Model:   getEnv("RANK_ORACLE_MODEL", "qwen-reranker"),
			Timeout: getEnvInt("RANK_ORACLE_TIMEOUT", 10),
		},
		MatchOracle: ServiceConfig{
			URL:     getEnv("MATCH_ORACLE_URL", "http://match-oracle:8002"),
			Model:   getEnv("MATCH_ORACLE_MODEL", "match-vision-v1"),
			Timeout: getEnvInt("MATCH_ORACLE_TIMEOUT", 20),
		},
		Planner: ServiceConfig{
			URL:     getEnv("PLANNER_URL", "http://planner:8003"),
			Model:   getEnv("PLANNER_MODEL", "planner-fast-v1"),
			Timeout: getEnvInt("PLANNER_TIMEOUT", 15),
		},
		WebSearch: ServiceConfig{
			URL:     getEnv("WEB_SEARCH_URL", "http://web-search:8004"),
			Timeout: getEnvInt("WEB_SEARCH_TIMEOUT", 10),
		},
		WeatherURL: getEnv("WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
		GeocodeURL: getEnv("GEOCODE_URL", "https://geocoding-api.open-meteo.com/v1/search"),

		MatchOracleRate:  getEnvFloat64("MATCH_ORACLE_RATE", 2),
		MatchOracleBurst: getEnvInt("MATCH_ORACLE_BURST", 4),

		Pipeline: PipelineConfig{
			SearchLimit:         getEnvInt("SEARCH_LIMIT", 40),
			RerankTopK:          getEnvInt("RERANK_TOP_K", 12),
			BrandCap:            getEnvInt("BRAND_CAP", 3),
			DiversityWindow:     getEnvInt("DIVERSITY_WINDOW", 20),
			OriginCap:           getEnvInt("ORIGIN_CAP", 3),
			OracleImageCap:      getEnvInt("ORACLE_IMAGE_CAP", 12),
			FinalBound:          getEnvInt("FINAL_BOUND", 8),
			MaxSubQueries:       getEnvInt("MAX_SUB_QUERIES", 4),
			MinValidForWeb:      getEnvInt("MIN_VALID_FOR_WEB", 5),
			WebSearchLimit:      getEnvInt("WEB_SEARCH_LIMIT", 25),
			ConfidenceThreshold: getEnvFloat64("CONFIDENCE_THRESHOLD", 0.45),
		},
		Cache: CacheConfig{
			Size:          getEnvInt("CACHE_SIZE", 256),
			TrendsTTL:     getEnvInt("TRENDS_CACHE_TTL", 60*60*24),
			WeatherTTL:    getEnvInt("WEATHER_CACHE_TTL", 600),
			WebResultsTTL: getEnvInt("WEB_RESULTS_CACHE_TTL", 600),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
