package config

import (
	"fmt"
	"os"
	"strconv"

	"mizan2/internal/models"
)

// PaymobConfig holds the gateway credentials and per-rail integration ids.
// All of it comes from the environment; none of it is user-fixable at runtime.
type PaymobConfig struct {
	APIKey         string
	HMACSecret     string
	BaseURL        string
	CheckoutBase   string
	IframeID       string
	IntegrationIDs map[models.PaymentMethod]string
}

// IntegrationIDFor resolves the gateway integration id for a payment rail.
func (p PaymobConfig) IntegrationIDFor(method models.PaymentMethod) (string, error) {
	id, ok := p.IntegrationIDs[method]
	if !ok || id == "" {
		return "", fmt.Errorf("no integration id configured for payment method %q", method)
	}
	return id, nil
}

type Config struct {
	Port        int
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Hosted auth provider token verification.
	JWKSURL   string
	JWTSecret string

	Paymob PaymobConfig

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	TemplateBucket string

	AssistantURL    string
	AssistantAPIKey string
}

// Load reads configuration from the environment. Only DATABASE_URL and the
// Paymob credentials are hard requirements; everything else has a dev default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envInt("PORT", 8080),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       envDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		JWKSURL:         os.Getenv("AUTH_JWKS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		MinioEndpoint:   envDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  envDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:  envDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:     os.Getenv("MINIO_USE_SSL") == "true",
		TemplateBucket:  envDefault("TEMPLATE_BUCKET", "legal-templates"),
		AssistantURL:    os.Getenv("ASSISTANT_URL"),
		AssistantAPIKey: os.Getenv("ASSISTANT_API_KEY"),
		Paymob: PaymobConfig{
			APIKey:       os.Getenv("PAYMOB_API_KEY"),
			HMACSecret:   os.Getenv("PAYMOB_HMAC_SECRET"),
			BaseURL:      envDefault("PAYMOB_BASE_URL", "https://accept.paymob.com/api"),
			CheckoutBase: envDefault("PAYMOB_CHECKOUT_BASE", "https://accept.paymob.com/api/acceptance/iframes"),
			IframeID:     os.Getenv("PAYMOB_IFRAME_ID"),
			IntegrationIDs: map[models.PaymentMethod]string{
				models.MethodCard:         os.Getenv("PAYMOB_INTEGRATION_ID_CARD"),
				models.MethodWallet:       os.Getenv("PAYMOB_INTEGRATION_ID_WALLET"),
				models.MethodInstallments: os.Getenv("PAYMOB_INTEGRATION_ID_INSTALLMENTS"),
			},
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.Paymob.APIKey == "" {
		return nil, fmt.Errorf("PAYMOB_API_KEY environment variable is required")
	}
	if cfg.Paymob.HMACSecret == "" {
		return nil, fmt.Errorf("PAYMOB_HMAC_SECRET environment variable is required")
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
