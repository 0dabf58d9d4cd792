package config

import (
	"crypto/rsa"
	"encoding/base64"
	"os"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/poofware/completions-service/internal/constants"
	"github.com/poofware/completions-service/internal/utils"
)

// PricingConfig is the fee schedule applied by the split calculator and
// exposed read-only through the API.
type PricingConfig struct {
	PlatformFeePercent    float64
	MultiWorkerFeePercent float64
	AutoApprovalHours     int
	SoloBonusCents        int64
	MinOnSiteMinutes      int
	RequiresEvidence      bool
}

type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string
	DBUrl            string

	StripeSecretKey string

	SendgridAPIKey      string
	SendgridFromEmail   string
	SendgridSandboxMode bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string

	RSAPublicKey *rsa.PublicKey

	Pricing              PricingConfig
	SoloOfferWindowHours int
}

const OrganizationName = "Poof"

func LoadConfig() *Config {
	appName := envOrDefault("APP_NAME", "completions-service")
	utils.Logger.Info("Loading config for app: ", appName)

	pubB64 := mustEnv("RSA_PUBLIC_KEY_BASE64")
	pubPEM, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		utils.Logger.WithError(err).Fatal("RSA_PUBLIC_KEY_BASE64 is not valid base64")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	return &Config{
		OrganizationName: OrganizationName,
		AppName:          appName,
		AppPort:          mustEnv("APP_PORT"),
		AppUrl:           mustEnv("APP_URL_FROM_ANYWHERE"),
		DBUrl:            mustEnv("DB_URL"),

		StripeSecretKey: mustEnv("STRIPE_SECRET_KEY"),

		SendgridAPIKey:      mustEnv("SENDGRID_API_KEY"),
		SendgridFromEmail:   envOrDefault("SENDGRID_FROM_EMAIL", "no-reply@thepoofapp.com"),
		SendgridSandboxMode: envBool("SENDGRID_SANDBOX_MODE", false),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:  os.Getenv("TWILIO_FROM_PHONE"),

		RSAPublicKey: pubKey,

		Pricing: PricingConfig{
			PlatformFeePercent:    envFloat("PLATFORM_FEE_PERCENT", constants.DefaultPlatformFeePercent),
			MultiWorkerFeePercent: envFloat("MULTI_WORKER_FEE_PERCENT", constants.DefaultMultiWorkerFeePercent),
			AutoApprovalHours:     envInt("AUTO_APPROVAL_HOURS", constants.DefaultAutoApprovalHours),
			SoloBonusCents:        int64(envInt("SOLO_BONUS_CENTS", constants.DefaultSoloBonusCents)),
			MinOnSiteMinutes:      envInt("MIN_ON_SITE_MINUTES", constants.DefaultMinOnSiteMinutes),
			RequiresEvidence:      envBool("REQUIRES_EVIDENCE", true),
		},
		SoloOfferWindowHours: envInt("SOLO_OFFER_WINDOW_HOURS", constants.DefaultSoloOfferWindowHours),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		utils.Logger.Fatalf("%s env var is missing", key)
	}
	return v
}

func envOrDefault(key, def string) string {
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
		utils.Logger.Fatalf("%s env var is not an integer: %q", key, v)
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
		utils.Logger.Fatalf("%s env var is not a number: %q", key, v)
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.Logger.Fatalf("%s env var is not a boolean: %q", key, v)
	}
	return b
}
