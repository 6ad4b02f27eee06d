// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the typed application configuration.
type Config struct {
	AppPort string
	AppEnv  string

	DatabaseDriver string
	DatabaseDSN    string
	// OrderStore selects the order record store: gorm, mongo or memory.
	OrderStore    string
	MongoURI      string
	MongoDatabase string

	JWTSecret    string
	JWTTTL       time.Duration
	CookieSecure bool
	ClientURL    string

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
	PaymentMethodLabel  string
	GatewayTimeout      time.Duration
	BreakerMaxFailures  uint32
	BreakerOpenTimeout  time.Duration

	TaxRate                decimal.Decimal
	ShippingFlat           decimal.Decimal
	HonorClientCharges     bool
	RequirePaidForDelivery bool

	RabbitMQURL string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// IsDevelopment reports whether the app runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}

// SuccessURL is where the hosted checkout sends the shopper after paying.
func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.ClientURL, "/") + "/payment-success?session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL is where the hosted checkout sends the shopper on cancel.
func (c *Config) CancelURL() string {
	return strings.TrimRight(c.ClientURL, "/") + "/payment-failed"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "storefront.db")
	v.SetDefault("ORDER_STORE", "gorm")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "storefront")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_CURRENCY", "inr")
	v.SetDefault("PAYMENT_METHOD_LABEL", "Stripe")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("ORDER_TAX_RATE", "0")
	v.SetDefault("ORDER_SHIPPING_FLAT", "0")
	v.SetDefault("ORDER_HONOR_CLIENT_CHARGES", false)
	v.SetDefault("ORDER_REQUIRE_PAID_FOR_DELIVERY", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:                v.GetString("APP_PORT"),
		AppEnv:                 strings.ToLower(v.GetString("APP_ENV")),
		DatabaseDriver:         v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		OrderStore:             strings.ToLower(v.GetString("ORDER_STORE")),
		MongoURI:               v.GetString("MONGO_URI"),
		MongoDatabase:          v.GetString("MONGO_DATABASE"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTTTL:                 v.GetDuration("JWT_TTL"),
		CookieSecure:           v.GetBool("COOKIE_SECURE"),
		ClientURL:              v.GetString("CLIENT_URL"),
		StripeSecretKey:        v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    v.GetString("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:        strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
		PaymentMethodLabel:     v.GetString("PAYMENT_METHOD_LABEL"),
		GatewayTimeout:         v.GetDuration("GATEWAY_TIMEOUT"),
		BreakerMaxFailures:     v.GetUint32("BREAKER_MAX_FAILURES"),
		BreakerOpenTimeout:     v.GetDuration("BREAKER_OPEN_TIMEOUT"),
		HonorClientCharges:     v.GetBool("ORDER_HONOR_CLIENT_CHARGES"),
		RequirePaidForDelivery: v.GetBool("ORDER_REQUIRE_PAID_FOR_DELIVERY"),
		RabbitMQURL:            v.GetString("RABBITMQ_URL"),
		AdminUsername:          v.GetString("ADMIN_USERNAME"),
		AdminEmail:             v.GetString("ADMIN_EMAIL"),
		AdminPassword:          v.GetString("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.TaxRate, err = parseAmount("ORDER_TAX_RATE", v.GetString("ORDER_TAX_RATE")); err != nil {
		return nil, err
	}
	if cfg.ShippingFlat, err = parseAmount("ORDER_SHIPPING_FLAT", v.GetString("ORDER_SHIPPING_FLAT")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.OrderStore {
	case "gorm", "mongo", "memory":
	default:
		return fmt.Errorf("ORDER_STORE must be gorm, mongo or memory, got %q", c.OrderStore)
	}
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required")
		}
		log.Println("Warning: JWT_SECRET not set, using an insecure development secret")
		c.JWTSecret = "dev-insecure-secret"
	}
	if c.StripeWebhookSecret == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	return nil
}

func parseAmount(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
