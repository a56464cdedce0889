package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the CRM service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	SessionSecret string
	SessionTTL    time.Duration
	// AppURL is the base of check-in links encoded into QR codes.
	AppURL   string
	Location *time.Location
	QRSize   int
	QRMargin int
	QRLevel  string

	AdminEmail    string
	AdminPassword string

	LogLevel  string
	LogFormat string
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "club-crm.db",
		SessionTTL: 24 * time.Hour,
		AppURL:     "http://localhost:3000",
		Location:   time.UTC,
		QRSize:     300,
		QRMargin:   2,
		QRLevel:    "M",
		LogLevel:   "info",
		LogFormat:  "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("CRM_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "CRM_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("CRM_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := env("CRM_SESSION_SECRET"); secret == "" {
		missing = append(missing, "CRM_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := env("CRM_SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "CRM_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if appURL := env("CRM_APP_URL"); appURL != "" {
		parsed, err := url.Parse(appURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			invalid = append(invalid, "CRM_APP_URL")
		} else {
			cfg.AppURL = strings.TrimRight(appURL, "/")
		}
	}

	if zone := env("CRM_TIMEZONE"); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "CRM_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if sizeValue := env("CRM_QR_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "CRM_QR_SIZE")
		} else {
			cfg.QRSize = size
		}
	}

	if marginValue := env("CRM_QR_MARGIN"); marginValue != "" {
		margin, err := strconv.Atoi(marginValue)
		if err != nil || margin < 0 {
			invalid = append(invalid, "CRM_QR_MARGIN")
		} else {
			cfg.QRMargin = margin
		}
	}

	if level := strings.ToUpper(env("CRM_QR_LEVEL")); level != "" {
		switch level {
		case "L", "M", "Q", "H":
			cfg.QRLevel = level
		default:
			invalid = append(invalid, "CRM_QR_LEVEL")
		}
	}

	cfg.AdminEmail = env("CRM_ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("CRM_ADMIN_PASSWORD")
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		missing = append(missing, "CRM_ADMIN_PASSWORD")
	}

	if level := strings.ToLower(env("CRM_LOG_LEVEL")); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "CRM_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(env("CRM_LOG_FORMAT")); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "CRM_LOG_FORMAT")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
