package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Env          string
	AppSecret    string
	DBPath       string
	TMDBAPIKey   string
	TMDBBaseURL  string
	ImageBaseURL string
	JWTExpiry    time.Duration
	Port         string
	SiteName     string
	SiteUrl      string
}

// Load 加载配置
func Load() *Config {
	expiryHours, _ := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "72"))

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	// TMDB 凭证缺失不致命：适配器会把所有外部请求降级为数据源不可用
	apiKey := getEnv("TMDB_API_KEY", "")
	if apiKey == "" {
		fmt.Println("【警告】未设置 TMDB_API_KEY，外部影片数据不可用，仅能使用本地缓存。")
	}

	return &Config{
		Env:          getEnv("APP_ENV", "development"),
		AppSecret:    appSecret,
		DBPath:       getEnv("DB_PATH", "data/reelist.db"),
		TMDBAPIKey:   apiKey,
		TMDBBaseURL:  getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		ImageBaseURL: getEnv("IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		JWTExpiry:    time.Duration(expiryHours) * time.Hour,
		Port:         getEnv("PORT", "5001"),
		SiteName:     getEnv("SITE_NAME", "Reelist"),
		SiteUrl:      getEnv("SITE_URL", "http://localhost:5001"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
