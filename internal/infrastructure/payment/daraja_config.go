package payment

import (
	"errors"
	"time"
)

const (
	darajaSandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	darajaProductionBaseURL = "https://api.safaricom.co.ke"
)

// DarajaConfig contains configuration for the Safaricom Daraja API
type DarajaConfig struct {
	// BaseURL overrides the environment's API root (tests point it at httptest)
	BaseURL string
	// Environment is sandbox or production
	Environment    string
	ConsumerKey    string
	ConsumerSecret string
	// Shortcode is the paybill number that receives STK payments
	Shortcode string
	// Passkey signs STK push requests
	Passkey            string
	STKCallbackURL     string
	C2BValidationURL   string
	C2BConfirmationURL string
	Timeout            time.Duration
}

// Errors for configuration validation
var (
	ErrDarajaMissingConsumerKey    = errors.New("daraja: missing consumer key")
	ErrDarajaMissingConsumerSecret = errors.New("daraja: missing consumer secret")
	ErrDarajaMissingShortcode      = errors.New("daraja: missing shortcode")
	ErrDarajaMissingPasskey        = errors.New("daraja: missing passkey")
	ErrDarajaMissingCallbackURL    = errors.New("daraja: missing STK callback URL")
)

// Validate validates the configuration
func (c *DarajaConfig) Validate() error {
	if c.ConsumerKey == "" {
		return ErrDarajaMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return ErrDarajaMissingConsumerSecret
	}
	if c.Shortcode == "" {
		return ErrDarajaMissingShortcode
	}
	if c.Passkey == "" {
		return ErrDarajaMissingPasskey
	}
	if c.STKCallbackURL == "" {
		return ErrDarajaMissingCallbackURL
	}
	return nil
}

func (c *DarajaConfig) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == "production" {
		return darajaProductionBaseURL
	}
	return darajaSandboxBaseURL
}
