// Package config holds the viewer's typed runtime options. The loader is
// intentionally minimal: per the project's scope, a fuller configuration
// pipeline (file layering, secret managers, hot reload) is an external
// concern and not part of this module.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DBDriver selects which storage.Adapter backend is constructed.
type DBDriver string

const (
	DBDriverPostgres DBDriver = "postgres"
	DBDriverSQLite   DBDriver = "sqlite"
)

// SecureCookieMode controls when the Secure cookie attribute is set.
type SecureCookieMode string

const (
	SecureCookieAuto  SecureCookieMode = "auto"
	SecureCookieTrue  SecureCookieMode = "true"
	SecureCookieFalse SecureCookieMode = "false"
)

// PushMode selects how aggressively the push dispatcher operates.
type PushMode string

const (
	PushOff   PushMode = "off"
	PushBasic PushMode = "basic"
	PushFull  PushMode = "full"
)

// Config is the full set of typed options the viewer reads at startup.
// A struct of typed options is assumed to arrive this way regardless of
// loader; Load is one reasonable way to populate it from the environment.
type Config struct {
	// Storage
	DBDriver      DBDriver
	PostgresURL   string
	SQLitePath    string
	MediaRoot     string

	// HTTP
	ListenAddr     string
	CORSOrigins    []string
	AllowedOrigins map[string]bool

	// Auth
	MasterUsername     string
	MasterPasswordHash  string // PBKDF2 hash of the configured master password
	MasterSalt          string
	AuthSessionSeconds  int64
	LoginRateLimit      int
	LoginRateWindowSec  int64
	MaxSessionsPerUser  int
	SecureCookies       SecureCookieMode

	// Scope
	DisplayChatIDs []int64 // nil means unrestricted

	// Push
	PushNotifications PushMode
	VAPIDPublicKey    string
	VAPIDPrivateKey   string
	VAPIDSubject      string

	// Timezone / stats
	ViewerTimezone       string
	StatsCalculationHour int

	// Mass-operation protector
	MassOpThreshold     int
	MassOpWindowSeconds float64
	MassOpBufferDelay   float64
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt64List(key string) []int64 {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Load populates a Config from environment variables, applying the
// defaults named throughout spec.md §6.
func Load() *Config {
	origins := strings.Split(env("CORS_ORIGINS", "*"), ",")
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}

	return &Config{
		DBDriver:    DBDriver(env("DB_DRIVER", "sqlite")),
		PostgresURL: env("DATABASE_URL", ""),
		SQLitePath:  env("SQLITE_PATH", "./archive.db"),
		MediaRoot:   env("MEDIA_ROOT", "./media"),

		ListenAddr:     env("LISTEN_ADDR", ":8080"),
		CORSOrigins:    origins,
		AllowedOrigins: allowed,

		MasterUsername:     env("MASTER_USERNAME", "admin"),
		MasterPasswordHash: env("MASTER_PASSWORD_HASH", ""),
		MasterSalt:         env("MASTER_SALT", ""),
		AuthSessionSeconds: envInt64("AUTH_SESSION_SECONDS", int64(30*24*time.Hour/time.Second)),
		LoginRateLimit:     envInt("LOGIN_RATE_LIMIT", 15),
		LoginRateWindowSec: envInt64("LOGIN_RATE_WINDOW", 300),
		MaxSessionsPerUser: envInt("MAX_SESSIONS_PER_USER", 10),
		SecureCookies:      SecureCookieMode(env("AUTH_SECURE_COOKIES", string(SecureCookieAuto))),

		DisplayChatIDs: envInt64List("DISPLAY_CHAT_IDS"),

		PushNotifications: PushMode(env("PUSH_NOTIFICATIONS", string(PushOff))),
		VAPIDPublicKey:    env("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:   env("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:      env("VAPID_SUBJECT", "mailto:admin@example.com"),

		ViewerTimezone:       env("VIEWER_TIMEZONE", "UTC"),
		StatsCalculationHour: envInt("STATS_CALCULATION_HOUR", 3),

		MassOpThreshold:     envInt("MASS_OP_THRESHOLD", 10),
		MassOpWindowSeconds: envFloat("MASS_OP_WINDOW_S", 30),
		MassOpBufferDelay:   envFloat("MASS_OP_BUFFER_DELAY_S", 2.0),
	}
}
