package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DBPath       string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	MaxFrameSize int // bytes, inbound frames above this are fatal

	AdminUserID string // authorized for /broadcast and /kick
	AdminMarker string // nickname substring that also grants admin rights
	BotUserID   string // messages to this id are answered by the AI relay

	AIKey   string
	AIURL   string
	AIModel string
}

func Load() *Config {
	cfg := &Config{
		Port:         5555,
		DBPath:       "mychat.db",
		ReadTimeout:  300,
		WriteTimeout: 30,
		MaxFrameSize: 1 << 20,
		AdminUserID:  "8888",
		AdminMarker:  "admin",
		BotUserID:    "9999",
		AIURL:        "https://api.siliconflow.cn/v1",
		AIModel:      "Qwen/Qwen2.5-7B-Instruct",
	}

	if portStr := os.Getenv("MYCHAT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if dbPath := os.Getenv("MYCHAT_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if timeoutStr := os.Getenv("MYCHAT_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if timeoutStr := os.Getenv("MYCHAT_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if sizeStr := os.Getenv("MYCHAT_MAX_FRAME"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size > 0 {
			cfg.MaxFrameSize = size
		}
	}

	if id := os.Getenv("MYCHAT_ADMIN_ID"); id != "" {
		cfg.AdminUserID = id
	}

	if marker := os.Getenv("MYCHAT_ADMIN_MARKER"); marker != "" {
		cfg.AdminMarker = marker
	}

	if id := os.Getenv("MYCHAT_BOT_ID"); id != "" {
		cfg.BotUserID = id
	}

	if key := os.Getenv("MYCHAT_AI_KEY"); key != "" {
		cfg.AIKey = key
	}

	if url := os.Getenv("MYCHAT_AI_URL"); url != "" {
		cfg.AIURL = url
	}

	if model := os.Getenv("MYCHAT_AI_MODEL"); model != "" {
		cfg.AIModel = model
	}

	return cfg
}
