package server

import "os"

// Config - настройки транспортного слоя. Читаются из окружения,
// .env подхватывает main до вызова Load.
type Config struct {
	Port         string
	RecordingDir string
	ArchivePath  string
	// PublicURL - адрес, по которому сервер виден игрокам.
	// Используется для ссылки в QR-коде.
	PublicURL string
}

func LoadConfig() Config {
	cfg := Config{
		Port:         envOr("AIRLOCK_PORT", "8080"),
		RecordingDir: envOr("AIRLOCK_RECORDING_DIR", "recordings"),
		ArchivePath:  envOr("AIRLOCK_ARCHIVE_PATH", "recordings/archive.db"),
	}
	cfg.PublicURL = envOr("AIRLOCK_PUBLIC_URL", "http://localhost:"+cfg.Port)
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
