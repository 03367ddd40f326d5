package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	ImageKit  ImageKitConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ImageKitConfig configures the external media store client.
type ImageKitConfig struct {
	UploadEndpoint string
	APIEndpoint    string
	PrivateKey     string
	Folder         string
	UploadTimeout  int // in seconds
	DeleteTimeout  int // in seconds
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	SearchRequestsPerMinute int
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("IMAGEKIT_UPLOAD_ENDPOINT", "https://upload.imagekit.io/api/v1/files/upload")
	viper.SetDefault("IMAGEKIT_API_ENDPOINT", "https://api.imagekit.io/v1")
	viper.SetDefault("IMAGEKIT_FOLDER", "products")
	viper.SetDefault("IMAGEKIT_UPLOAD_TIMEOUT", 30)
	viper.SetDefault("IMAGEKIT_DELETE_TIMEOUT", 10)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("SEARCH_RATE_LIMIT", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		ImageKit: ImageKitConfig{
			UploadEndpoint: viper.GetString("IMAGEKIT_UPLOAD_ENDPOINT"),
			APIEndpoint:    viper.GetString("IMAGEKIT_API_ENDPOINT"),
			PrivateKey:     viper.GetString("IMAGEKIT_PRIVATE_KEY"),
			Folder:         viper.GetString("IMAGEKIT_FOLDER"),
			UploadTimeout:  viper.GetInt("IMAGEKIT_UPLOAD_TIMEOUT"),
			DeleteTimeout:  viper.GetInt("IMAGEKIT_DELETE_TIMEOUT"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ","),
		},
		RateLimit: RateLimitConfig{
			SearchRequestsPerMinute: viper.GetInt("SEARCH_RATE_LIMIT"),
		},
	}
}
