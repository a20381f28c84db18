package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all server settings in correct types.
type Config struct {
	Port              int
	DataPath          string
	DBFilePath        string
	OutputPath        string
	OutputTemplate    string
	AllowedOrigins    []string
	MaxConcurrentJobs int

	YouTubeAPIKey        string
	YouTubePlaylistID    string
	YouTubePlaylistCount int
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	dataPath := getEnv("DATA_PATH", "./data")

	return &Config{
		Port:              getEnvAsInt("PORT", 8000),
		DataPath:          dataPath,
		DBFilePath:        getEnv("DB_FILE_PATH", filepath.Join(dataPath, "ytdvr.db")),
		OutputPath:        getEnv("OUTPUT_PATH", filepath.Join(dataPath, "output")),
		OutputTemplate:    getEnv("YT_OUTPUT_TEMPLATE", "%(title)s [%(id)s].%(ext)s"),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 2),

		YouTubeAPIKey:        os.Getenv("YT_API_KEY"),
		YouTubePlaylistID:    os.Getenv("YT_PLAYLIST_ID"),
		YouTubePlaylistCount: getEnvAsInt("YT_PLAYLIST_MAX_COUNT", 50),
	}
}

// Describe returns the settings shown by the diagnostics endpoint.
func (c *Config) Describe() map[string]any {
	return map[string]any{
		"data_path":       c.DataPath,
		"db_file_path":    c.DBFilePath,
		"output_path":     c.OutputPath,
		"output_template": c.OutputTemplate,
		"allowed_origins": c.AllowedOrigins,
		"max_concurrent":  c.MaxConcurrentJobs,
	}
}

// EnsurePaths creates the data and output directories if missing.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.DataPath, c.OutputPath} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if val, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return val
	}
	return fallback
}
