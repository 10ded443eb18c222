package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
)

type Config struct {
	AppPort           string
	SkalePayBaseURL   string
	SkalePaySecret    string
	UTMifyBaseURL     string
	UTMifyAPIToken    string
	CallbackURL       string
	CORSOrigins       []string
	WebhookHMACSecret string
	SigMaxAgeSeconds  int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// callbackSuffix is the canonical postback path; it must match the route
// the webhook handler is mounted on.
const callbackSuffix = "/webhooks/skalepay"

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NormalizeCallbackURL turns a configured public URL into the canonical
// postback URL handed to the gateway: https scheme when none given,
// trailing slashes trimmed, callback path appended when missing.
// Returns "" for empty input.
func NormalizeCallbackURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if !schemeRe.MatchString(url) {
		url = "https://" + url
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(strings.ToLower(url), callbackSuffix) {
		url += callbackSuffix
	}
	return url
}

var ErrNoCallbackURL = errors.New("no valid public callback URL configured (set PUBLIC_CALLBACK_URL)")

// Load reads the environment and validates the callback URL once, so a
// misconfigured deployment fails at startup instead of on the first charge.
func Load() (Config, error) {
	origins := strings.Split(getenv("CORS_ORIGINS", "*"), ",")
	for i, o := range origins {
		origins[i] = strings.TrimRight(strings.TrimSpace(o), "/")
	}

	cfg := Config{
		AppPort:           getenv("APP_PORT", "10000"),
		SkalePayBaseURL:   getenv("SKALEPAY_BASE_URL", "https://api.conta.skalepay.com.br/v1"),
		SkalePaySecret:    os.Getenv("SKALEPAY_SECRET"),
		UTMifyBaseURL:     getenv("UTMIFY_BASE_URL", "https://api.utmify.com.br"),
		UTMifyAPIToken:    os.Getenv("UTMIFY_API_TOKEN"),
		CallbackURL:       NormalizeCallbackURL(os.Getenv("PUBLIC_CALLBACK_URL")),
		CORSOrigins:       origins,
		WebhookHMACSecret: os.Getenv("WEBHOOK_HMAC_SECRET"),
		SigMaxAgeSeconds:  getInt64("SIG_MAX_AGE_SECONDS", 300),
	}

	if cfg.CallbackURL == "" {
		return Config{}, ErrNoCallbackURL
	}
	return cfg, nil
}
