package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AutomationConfig struct {
	// Headless controls whether the browser UI is shown.
	Headless bool
	// ConfirmTimeout bounds each duplicate-identifier check.
	ConfirmTimeout time.Duration
	// ConfirmStrict turns confirmation timeouts into hard failures instead
	// of the assumed-available default.
	ConfirmStrict bool
	// SettleDelay is the pause between batch records.
	SettleDelay time.Duration
}

type AppConfig struct {
	Port        string
	Database    DatabaseConfig
	Automation  AutomationConfig
	JWTSecret   string
	Environment string
}

func GetDatabaseConfig() DatabaseConfig {
	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	password := getEnv("DB_PASSWORD", "")

	if password == "" {
		fmt.Println("Warning: DB_PASSWORD environment variable is not set; batch run persistence will be disabled.")
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: password,
		DBName:   getEnv("DB_NAME", "visitauto"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func GetAutomationConfig() AutomationConfig {
	confirmSecs, _ := strconv.Atoi(getEnv("CONFIRM_TIMEOUT_SECONDS", "10"))
	settleSecs, _ := strconv.Atoi(getEnv("SETTLE_DELAY_SECONDS", "2"))
	return AutomationConfig{
		Headless:       getEnv("HEADLESS", "true") == "true",
		ConfirmTimeout: time.Duration(confirmSecs) * time.Second,
		ConfirmStrict:  getEnv("CONFIRM_STRICT", "false") == "true",
		SettleDelay:    time.Duration(settleSecs) * time.Second,
	}
}

func GetAppConfig() AppConfig {
	return AppConfig{
		Port:        getEnv("PORT", "8081"),
		Database:    GetDatabaseConfig(),
		Automation:  GetAutomationConfig(),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
