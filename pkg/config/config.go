package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	LogLevel    string
	DatabaseURL string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration
	AuthEnabled      bool

	// Pipeline
	AutoSendUrgent bool
	DefaultFrom    string
	BatchLimit     int

	// Scheduler
	AutoFetch     bool
	FetchInterval time.Duration

	// Inbound mail: "imap", "gmail" or empty to disable fetching
	MailSource   string
	IMAPHost     string
	IMAPPort     int
	IMAPUser     string
	IMAPPassword string
	IMAPTLS      bool
	IMAPMailbox  string

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailQuery        string

	// Outbound mail: "smtp", "resend" or "sendgrid"
	MailProvider   string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPSecure     bool
	ResendAPIKey   string
	SendGridAPIKey string

	// Draft generation: "openai", "gemini", "ollama" or "auto"
	AIProvider    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	// Knowledge base
	ChromaURL        string
	ChromaAPIKey     string
	ChromaTenant     string
	ChromaDatabase   string
	ChromaCollection string
	KBSeedFile       string

	// Google Cloud push trigger and alerts
	GoogleProjectID     string
	PubSubTopic         string
	PubSubSubscription  string
	GoogleCredentials   string
	FirebaseCredentials string
	FCMTopic            string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	defaultFrom := getEnv("DEFAULT_FROM", "")
	if defaultFrom == "" {
		defaultFrom = getEnv("SMTP_USER", "")
	}

	return &Config{
		Port:        getEnv("PORT", "4000"),
		AppEnv:      getEnv("APP_ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		AuthEnabled:      getBool("AUTH_ENABLED", false),

		AutoSendUrgent: getBool("AUTO_SEND_URGENT", false),
		DefaultFrom:    defaultFrom,
		BatchLimit:     getInt("BATCH_LIMIT", 50),

		AutoFetch:     getBool("AUTO_FETCH", false),
		FetchInterval: fetchInterval(),

		MailSource:        strings.ToLower(getEnv("MAIL_SOURCE", "imap")),
		IMAPHost:          getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:          getInt("IMAP_PORT", 993),
		IMAPUser:          getEnv("IMAP_USER", ""),
		IMAPPassword:      getEnv("IMAP_PASSWORD", ""),
		IMAPTLS:           getBool("IMAP_TLS", true),
		IMAPMailbox:       getEnv("IMAP_MAILBOX", "INBOX"),
		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailQuery:        getEnv("GMAIL_QUERY", "is:unread in:inbox"),

		MailProvider:   strings.ToLower(getEnv("MAIL_PROVIDER", "smtp")),
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getInt("SMTP_PORT", 465),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASS", ""),
		SMTPSecure:     getBool("SMTP_SECURE", true),
		ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		AIProvider:    strings.ToLower(getEnv("AI_PROVIDER", "openai")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		ChromaURL:        getEnv("CHROMA_URL", ""),
		ChromaAPIKey:     getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:     getEnv("CHROMA_TENANT", ""),
		ChromaDatabase:   getEnv("CHROMA_DATABASE", ""),
		ChromaCollection: getEnv("CHROMA_COLLECTION", "support_kb"),
		KBSeedFile:       getEnv("KB_SEED_FILE", ""),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		PubSubTopic:         getEnv("PUBSUB_TOPIC", "gmail-updates"),
		PubSubSubscription:  getEnv("PUBSUB_SUBSCRIPTION", "supportdesk-fetch-trigger"),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMTopic:            getEnv("FCM_TOPIC", "support-urgent"),
	}
}

// fetchInterval reads FETCH_INTERVAL as a duration, or FETCH_INTERVAL_MS in milliseconds.
func fetchInterval() time.Duration {
	if d := getDuration("FETCH_INTERVAL", 0); d > 0 {
		return d
	}
	if ms := getInt("FETCH_INTERVAL_MS", 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return 5 * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
