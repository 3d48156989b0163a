package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	SiteID    string
	Debug     bool

	DBDriver string
	DBDSN    string

	CasesDir string // optional: load case bundles from disk instead of the embedded set

	StateBackend     string // sql|fs|redis|memory
	StateBasePath    string // for fs
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTTL         time.Duration
	SuspendBudget    int           // characters
	SuspendWarnRatio float64       // 0..1
	SessionIdleTTL   time.Duration // resident learners unseen this long are evicted

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt; empty disables admin login

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Completion reporting
	DeliveryTimeout  time.Duration
	WebhookURL       string
	XAPIEndpoint     string
	XAPIUsername     string
	XAPIPassword     string
	XAPITokenURL     string
	XAPIClientID     string
	XAPIClientSecret string
	XAPIActivityID   string
	EnableOutbox     bool
	AMQPURI          string
	AMQPExchange     string

	// LTI Assignment and Grade Services passback
	EnableLTI       bool
	LTITokenURL     string
	LTIClientID     string
	LTIClientSecret string

	// Challenge-result email (Amazon SES)
	AWSRegion        string
	SESFromEmail     string
	SESFromName      string
	ChallengeEmailTo string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:      mode,
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: os.Getenv("PUBLIC_URL"),
		SiteID:    envOr("SITE_ID", "local"),
		Debug:     envBool("DEBUG", false),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		CasesDir: os.Getenv("CASES_DIR"),

		StateBackend:     envOr("STATE_BACKEND", "sql"),
		StateBasePath:    envOr("STATE_BASE_PATH", "./data/state"),
		RedisAddr:        envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envInt("REDIS_DB", 0),
		RedisTTL:         time.Duration(envInt("REDIS_TTL_HOURS", 0)) * time.Hour,
		SuspendBudget:    envInt("SUSPEND_BUDGET", 4096),
		SuspendWarnRatio: envFloat("SUSPEND_WARN_RATIO", 0.9),
		SessionIdleTTL:   time.Duration(envInt("SESSION_IDLE_MINUTES", 120)) * time.Minute,

		AuthSecret:    envOr("AUTH_SECRET", "dev-secret-change-me"),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://trainer.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),

		DeliveryTimeout:  time.Duration(envInt("DELIVERY_TIMEOUT_SEC", 30)) * time.Second,
		WebhookURL:       os.Getenv("COMPLETION_WEBHOOK_URL"),
		XAPIEndpoint:     os.Getenv("XAPI_ENDPOINT"),
		XAPIUsername:     os.Getenv("XAPI_USERNAME"),
		XAPIPassword:     os.Getenv("XAPI_PASSWORD"),
		XAPITokenURL:     os.Getenv("XAPI_TOKEN_URL"),
		XAPIClientID:     os.Getenv("XAPI_CLIENT_ID"),
		XAPIClientSecret: os.Getenv("XAPI_CLIENT_SECRET"),
		XAPIActivityID:   os.Getenv("XAPI_ACTIVITY_ID"),
		EnableOutbox:     envBool("ENABLE_OUTBOX", true),
		AMQPURI:          os.Getenv("AMQP_URI"),
		AMQPExchange:     envOr("AMQP_EXCHANGE", "cms485.events"),

		EnableLTI:       envBool("ENABLE_LTI", mode == ModeOnline),
		LTITokenURL:     os.Getenv("LTI_TOKEN_URL"),
		LTIClientID:     os.Getenv("LTI_CLIENT_ID"),
		LTIClientSecret: os.Getenv("LTI_CLIENT_SECRET"),

		AWSRegion:        envOr("AWS_REGION", "us-east-1"),
		SESFromEmail:     os.Getenv("SES_FROM_EMAIL"),
		SESFromName:      envOr("SES_FROM_NAME", "CMS-485 Trainer"),
		ChallengeEmailTo: os.Getenv("CHALLENGE_EMAIL_TO"),
	}
}

// CORSOrigins picks the origin list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
