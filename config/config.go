package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScopes is the scope string requested from the identity provider
const DefaultScopes = "openid profile email accounting.transactions offline_access"

type Config struct {
	Server ServerConfig `yaml:"server"`
	Xero   XeroConfig   `yaml:"xero"`
	Order  OrderConfig  `yaml:"order"`
	Minio  MinioConfig  `yaml:"minio"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	Port               int `yaml:"port"`
	RateLimit          int `yaml:"rate_limit"`
	MaxUploadSizeMB    int `yaml:"max_upload_size_mb"`
	MaxConcurrentReads int `yaml:"max_concurrent_reads"` // spreadsheets parsed at once
}

type XeroConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RedirectURI    string `yaml:"redirect_uri"`
	Scopes         string `yaml:"scopes"`
	AuthURL        string `yaml:"auth_url"`
	TokenURL       string `yaml:"token_url"`
	APIURL         string `yaml:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type OrderConfig struct {
	AccountCode     string   `yaml:"account_code"`
	TaxType         string   `yaml:"tax_type"`
	DeliveryAddress string   `yaml:"delivery_address"`
	Currencies      []string `yaml:"currencies"`
	DefaultCurrency string   `yaml:"default_currency"`
	QuoteSection    string   `yaml:"quote_section"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether quote archiving is configured
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	SessionExpireHours int    `yaml:"session_expire_hours"`
	CookieName         string `yaml:"cookie_name"`
	SecureCookie       bool   `yaml:"secure_cookie"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults plus environment
// when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Xero.ClientID, "CLIENT_ID")
	setString(&c.Xero.ClientSecret, "CLIENT_SECRET")
	setString(&c.Xero.RedirectURI, "REDIRECT_URI")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.MaxUploadSizeMB == 0 {
		c.Server.MaxUploadSizeMB = 10
	}
	if c.Server.MaxConcurrentReads <= 0 {
		c.Server.MaxConcurrentReads = 4
	}

	if c.Xero.RedirectURI == "" {
		c.Xero.RedirectURI = "http://localhost:5000/callback"
	}
	if c.Xero.Scopes == "" {
		c.Xero.Scopes = DefaultScopes
	}
	if c.Xero.AuthURL == "" {
		c.Xero.AuthURL = "https://login.xero.com/identity/connect/authorize"
	}
	if c.Xero.TokenURL == "" {
		c.Xero.TokenURL = "https://identity.xero.com/connect/token"
	}
	if c.Xero.APIURL == "" {
		c.Xero.APIURL = "https://api.xero.com"
	}
	c.Xero.APIURL = strings.TrimRight(c.Xero.APIURL, "/")
	if c.Xero.TimeoutSeconds == 0 {
		c.Xero.TimeoutSeconds = 60
	}

	if c.Order.AccountCode == "" {
		c.Order.AccountCode = "400"
	}
	if c.Order.TaxType == "" {
		c.Order.TaxType = "INPUT"
	}
	if c.Order.DeliveryAddress == "" {
		c.Order.DeliveryAddress = "Enablis Office"
	}
	if len(c.Order.Currencies) == 0 {
		c.Order.Currencies = []string{"AUD", "NZD"}
	}
	if c.Order.DefaultCurrency == "" {
		c.Order.DefaultCurrency = "AUD"
	}
	if c.Order.QuoteSection == "" {
		c.Order.QuoteSection = "QUOTE INFORMATION"
	}

	if c.Auth.SessionExpireHours == 0 {
		c.Auth.SessionExpireHours = 24
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "quotepo_session"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}

	if c.Store.MaxSessions == 0 {
		c.Store.MaxSessions = 100
	}
}

// ScopeList splits the configured scope string
func (x XeroConfig) ScopeList() []string {
	return strings.Fields(x.Scopes)
}
