package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	CompanyRegion string

	// Confidence policy. The 0.70 cutoff and the required/optional
	// weighting are business policy, so they stay tunable.
	ReviewThreshold     float64
	RequiredFieldWeight float64
	OptionalFieldWeight float64

	// Extraction tuning.
	PDFMinTextChars int
	OCRLanguages    []string
	OCRDPI          int

	FactorAPIBaseURL  string
	FactorAPIToken    string
	FactorRateLimit   int
	FactorTimeoutMs   int
	FactorLookbackDay int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool

	// How far back the mailbox scan reaches. Invoices arrive on a
	// monthly cadence, so a cycle and a half of slack is plenty.
	MailLookbackDays int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CompanyRegion: getEnv("COMPANY_REGION", "ES"),

		ReviewThreshold:     getEnvFloat("REVIEW_THRESHOLD", 0.70),
		RequiredFieldWeight: getEnvFloat("REQUIRED_FIELD_WEIGHT", 3.0),
		OptionalFieldWeight: getEnvFloat("OPTIONAL_FIELD_WEIGHT", 1.0),

		PDFMinTextChars: getEnvInt("PDF_MIN_TEXT_CHARS", 32),
		OCRLanguages:    splitList(getEnv("OCR_LANGUAGES", "spa,eng")),
		OCRDPI:          getEnvInt("OCR_DPI", 300),

		FactorAPIBaseURL:  getEnv("FACTOR_API_BASE_URL", "https://factors.getluma.es/api/v1"),
		FactorAPIToken:    getEnv("FACTOR_API_TOKEN", ""),
		FactorRateLimit:   getEnvInt("FACTOR_RATE_LIMIT_RPS", 5),
		FactorTimeoutMs:   getEnvInt("FACTOR_TIMEOUT_MS", 30000),
		FactorLookbackDay: getEnvInt("FACTOR_INCREMENTAL_DAYS", 2),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),

		MailLookbackDays: getEnvInt("MAIL_LOOKBACK_DAYS", 45),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
