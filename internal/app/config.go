package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (SWC_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SWC_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SWC_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Checkout     CheckoutConfig
	Paystack     PaystackConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CheckoutConfig holds the pricing policy applied at order creation.
type CheckoutConfig struct {
	// TaxRate is a fraction applied to the order subtotal, e.g. "0.01" for 1%.
	TaxRate string `default:"0.01" usage:"Tax rate applied to order subtotal" flag:"tax-rate"`
	// ShippingFee is a flat per-order fee in major currency units.
	ShippingFee string `default:"0" usage:"Flat shipping fee per order" flag:"shipping-fee"`
	// LockDuration is how long order totals stay payable after checkout.
	LockDuration time.Duration `default:"15m" usage:"Order price lock duration" flag:"price-lock-duration"`
}

// PaystackConfig holds the payment provider settings.
type PaystackConfig struct {
	SecretKey   string        `usage:"Paystack secret key (SWC_PAYSTACK_SECRET_KEY)" flag:"paystack-secret-key"`
	BaseURL     string        `default:"" usage:"Paystack API base URL override (for testing)" flag:"paystack-base-url"`
	CallbackURL string        `usage:"Publicly reachable payment callback URL" flag:"paystack-callback-url"`
	Timeout     time.Duration `default:"30s" usage:"Paystack request timeout" flag:"paystack-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// TaxRateDecimal parses the configured tax rate.
func (c CheckoutConfig) TaxRateDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	return d, nil
}

// ShippingFeeDecimal parses the configured shipping fee.
func (c CheckoutConfig) ShippingFeeDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse shipping fee %q", c.ShippingFee)
	}
	return d, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform-provided defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SWC",
		Files:     []string{"config.yaml", "/etc/swiftcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SWC_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Paystack.SecretKey == "" {
		return nil, errors.New("Paystack secret key is required: set SWC_PAYSTACK_SECRET_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SWC_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
