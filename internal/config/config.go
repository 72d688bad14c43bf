// Package config provides configuration loading and management for the catalog BFF.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
)

const (
	// StorageTypePostgres stores the catalog in PostgreSQL
	StorageTypePostgres = "postgres"

	// StorageTypeMemory keeps the catalog in process memory
	StorageTypeMemory = "memory"
)

const (
	// ImageStrategyTiered builds image URLs from id-range buckets
	ImageStrategyTiered = "tiered"

	// ImageStrategyAssetStore resolves image URLs through an external asset store,
	// uploading from the tiered source when the asset is missing
	ImageStrategyAssetStore = "assetStore"

	// ImageStrategyTransformURL builds asset store delivery URLs without any lookup
	ImageStrategyTransformURL = "transformURL"
)

const (
	defaultLoginPath          = "/login"
	defaultResourcePath       = "/adArticulosCatalogo/query"
	defaultTokenHeader        = "x-access-token"
	defaultCompanyCode        = 1
	defaultPageSize           = 100
	defaultMaxPages           = 25
	defaultTokenSafetyMargin  = 60 * time.Second
	defaultTokenTTL           = 3600 * time.Second
	defaultRequestTimeout     = 30 * time.Second
	defaultSchedule           = "0 3 * * *"
	defaultSyncTimeout        = 15 * time.Minute
	defaultLockKey            = "catalog-bff:sync-lock"
	defaultLockTTL            = 30 * time.Minute
	defaultEventsExchange     = "catalog"
	defaultEventsRoutingKey   = "catalog.synced"
	defaultAssetFolder        = "catalog"
	defaultAssetBaseURL       = "https://api.cloudinary.com"
	defaultAssetDeliveryURL   = "https://res.cloudinary.com"
	defaultAssetTransform     = "f_auto,q_auto:good"
	defaultAssetCacheSize     = 10000
	defaultDatabaseSSLMode    = "require"
	defaultDatabasePort       = 5432
	defaultDatabaseRetryLimit = 2 * time.Minute
)

const (
	// EnvUpstreamPassword is read when no upstream password file is configured
	EnvUpstreamPassword = "CATALOG_UPSTREAM_PASSWORD"

	// EnvDatabasePassword is read when no database password file is configured
	EnvDatabasePassword = "CATALOG_DATABASE_PASSWORD"

	// EnvJWTSecret is read when no JWT secret file is configured
	EnvJWTSecret = "CATALOG_JWT_SECRET"

	// EnvAssetStoreSecret is read when no asset store secret file is configured
	EnvAssetStoreSecret = "CATALOG_ASSET_STORE_SECRET"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Upstream  UpstreamConfig    `yaml:"upstream"`
	Images    ImagesConfig      `yaml:"images"`
	Sync      SyncConfig        `yaml:"sync"`
	Storage   StorageConfig     `yaml:"storage"`
	Auth      *AuthConfig       `yaml:"auth,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// UpstreamConfig defines how to reach and page through the upstream catalog API
type UpstreamConfig struct {
	// BaseURL is the root of the upstream API, without a trailing path
	BaseURL string `yaml:"baseURL" validate:"required,url"`

	// LoginPath is appended to BaseURL for the login call. Defaults to "/login"
	LoginPath string `yaml:"loginPath,omitempty"`

	// ResourcePath is appended to BaseURL for catalog page queries
	ResourcePath string `yaml:"resourcePath,omitempty"`

	Username     string `yaml:"username" validate:"required"`
	Password     string `yaml:"password,omitempty"`
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// TokenHeader is the request header carrying the session token
	TokenHeader string `yaml:"tokenHeader,omitempty"`

	// CompanyCode is the tenant constraint ANDed into every catalog query
	CompanyCode int `yaml:"companyCode,omitempty" validate:"gte=0"`

	PageSize int `yaml:"pageSize,omitempty" validate:"gte=0,lte=1000"`
	MaxPages int `yaml:"maxPages,omitempty" validate:"gte=0"`

	// TokenSafetyMargin is subtracted from the upstream TTL (e.g. "60s")
	TokenSafetyMargin string `yaml:"tokenSafetyMargin,omitempty" validate:"omitempty,duration"`

	// DefaultTokenTTL substitutes a missing or non-positive upstream TTL
	DefaultTokenTTL string `yaml:"defaultTokenTTL,omitempty" validate:"omitempty,duration"`

	RequestTimeout string `yaml:"requestTimeout,omitempty" validate:"omitempty,duration"`

	// RequestsPerSecond paces upstream calls. Zero disables pacing
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty" validate:"gte=0"`

	// RetryOnUnauthorized forces one re-login and retries the current page once
	// when the upstream rejects a page request with 401 or 403
	RetryOnUnauthorized *bool `yaml:"retryOnUnauthorized,omitempty"`
}

// ImagesConfig selects and parameterizes the image URL strategy
type ImagesConfig struct {
	Strategy string `yaml:"strategy,omitempty" validate:"omitempty,oneof=tiered assetStore transformURL"`

	TierLowBase  string `yaml:"tierLowBase,omitempty"`
	TierMidBase  string `yaml:"tierMidBase,omitempty"`
	TierHighBase string `yaml:"tierHighBase,omitempty"`

	AssetStore *AssetStoreConfig `yaml:"assetStore,omitempty"`
}

// AssetStoreConfig defines the external asset store used by the assetStore
// and transformURL strategies
type AssetStoreConfig struct {
	CloudName     string `yaml:"cloudName" validate:"required"`
	APIKey        string `yaml:"apiKey,omitempty"`
	APISecret     string `yaml:"apiSecret,omitempty"`
	APISecretFile string `yaml:"apiSecretFile,omitempty"`
	Folder        string `yaml:"folder,omitempty"`

	// Transformation is the delivery transformation token for transformURL
	Transformation string `yaml:"transformation,omitempty"`

	// BaseURL is the admin/upload API root
	BaseURL string `yaml:"baseURL,omitempty" validate:"omitempty,url"`

	// DeliveryURL is the root of delivery URLs built by transformURL
	DeliveryURL string `yaml:"deliveryURL,omitempty" validate:"omitempty,url"`

	// CacheSize bounds the in-process cache of resolved canonical URLs
	CacheSize int `yaml:"cacheSize,omitempty" validate:"gte=0"`
}

// SyncConfig defines scheduling of the catalog synchronization
type SyncConfig struct {
	// Schedule is a standard five-field cron expression
	Schedule string `yaml:"schedule,omitempty" validate:"omitempty,cron"`

	// RunOnStartup triggers one run immediately at process start
	RunOnStartup *bool `yaml:"runOnStartup,omitempty"`

	// Timeout bounds a single run (e.g. "15m")
	Timeout string `yaml:"timeout,omitempty" validate:"omitempty,duration"`

	Lock   *LockConfig   `yaml:"lock,omitempty"`
	Events *EventsConfig `yaml:"events,omitempty"`
}

// LockConfig enables a Redis lock shared by all replicas
type LockConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redisAddr" validate:"required_if=Enabled true"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	Key           string `yaml:"key,omitempty"`
	TTL           string `yaml:"ttl,omitempty" validate:"omitempty,duration"`
}

// EventsConfig enables publishing sync-completed events to RabbitMQ
type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AMQPURL    string `yaml:"amqpURL" validate:"required_if=Enabled true"`
	Exchange   string `yaml:"exchange,omitempty"`
	RoutingKey string `yaml:"routingKey,omitempty"`
}

// StorageConfig selects where the mirrored catalog lives
type StorageConfig struct {
	Type     string          `yaml:"type,omitempty" validate:"omitempty,oneof=postgres memory"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	User string `yaml:"user" validate:"required"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database" validate:"required"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns int32 `yaml:"maxConns,omitempty" validate:"gte=0"`

	// ConnectRetry bounds how long startup keeps retrying the first connection
	ConnectRetry string `yaml:"connectRetry,omitempty" validate:"omitempty,duration"`
}

// AuthConfig configures JWT verification for the read-side API
type AuthConfig struct {
	JWTSecret     string   `yaml:"jwtSecret,omitempty"`
	JWTSecretFile string   `yaml:"jwtSecretFile,omitempty"`
	Issuer        string   `yaml:"issuer,omitempty"`
	PublicPaths   []string `yaml:"publicPaths,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateStruct(c); err != nil {
		return err
	}

	switch c.Images.GetStrategy() {
	case ImageStrategyTiered:
		if c.Images.TierLowBase == "" && c.Images.TierMidBase == "" && c.Images.TierHighBase == "" {
			return fmt.Errorf("images: at least one tier base URL is required for the %s strategy", ImageStrategyTiered)
		}
	case ImageStrategyAssetStore, ImageStrategyTransformURL:
		if c.Images.AssetStore == nil {
			return fmt.Errorf("images: assetStore configuration is required for the %s strategy", c.Images.Strategy)
		}
	}

	if c.Storage.GetType() == StorageTypePostgres && c.Storage.Database == nil {
		return fmt.Errorf("storage: database configuration is required for the %s storage type", StorageTypePostgres)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// GetLoginURL returns the absolute login URL
func (u *UpstreamConfig) GetLoginURL() string {
	path := u.LoginPath
	if path == "" {
		path = defaultLoginPath
	}
	return joinURL(u.BaseURL, path)
}

// GetResourceURL returns the absolute catalog query URL, without query parameters
func (u *UpstreamConfig) GetResourceURL() string {
	path := u.ResourcePath
	if path == "" {
		path = defaultResourcePath
	}
	return joinURL(u.BaseURL, path)
}

// GetPassword returns the upstream password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CATALOG_UPSTREAM_PASSWORD environment variable
// 3. The inline Password value
func (u *UpstreamConfig) GetPassword() (string, error) {
	return resolveSecret("upstream password", u.PasswordFile, EnvUpstreamPassword, u.Password)
}

// GetTokenHeader returns the session token header, defaulting to "x-access-token"
func (u *UpstreamConfig) GetTokenHeader() string {
	if u.TokenHeader == "" {
		return defaultTokenHeader
	}
	return u.TokenHeader
}

// GetCompanyCode returns the tenant constraint, defaulting to 1
func (u *UpstreamConfig) GetCompanyCode() int {
	if u.CompanyCode == 0 {
		return defaultCompanyCode
	}
	return u.CompanyCode
}

// GetPageSize returns the page size, defaulting to 100
func (u *UpstreamConfig) GetPageSize() int {
	if u.PageSize <= 0 {
		return defaultPageSize
	}
	return u.PageSize
}

// GetMaxPages returns the page-count safety ceiling, defaulting to 25
func (u *UpstreamConfig) GetMaxPages() int {
	if u.MaxPages <= 0 {
		return defaultMaxPages
	}
	return u.MaxPages
}

// GetTokenSafetyMargin returns the token safety margin, defaulting to 60s
func (u *UpstreamConfig) GetTokenSafetyMargin() time.Duration {
	return parseDurationOr(u.TokenSafetyMargin, defaultTokenSafetyMargin)
}

// GetDefaultTokenTTL returns the TTL used when the upstream omits one, defaulting to 3600s
func (u *UpstreamConfig) GetDefaultTokenTTL() time.Duration {
	return parseDurationOr(u.DefaultTokenTTL, defaultTokenTTL)
}

// GetRequestTimeout returns the per-request timeout, defaulting to 30s
func (u *UpstreamConfig) GetRequestTimeout() time.Duration {
	return parseDurationOr(u.RequestTimeout, defaultRequestTimeout)
}

// GetRetryOnUnauthorized returns whether a rejected page is retried after a re-login
func (u *UpstreamConfig) GetRetryOnUnauthorized() bool {
	if u.RetryOnUnauthorized == nil {
		return true
	}
	return *u.RetryOnUnauthorized
}

// GetStrategy returns the image strategy, defaulting to tiered
func (i *ImagesConfig) GetStrategy() string {
	if i.Strategy == "" {
		return ImageStrategyTiered
	}
	return i.Strategy
}

// GetAPISecret returns the asset store API secret using the following priority:
// 1. Read from APISecretFile if specified
// 2. Read from CATALOG_ASSET_STORE_SECRET environment variable
// 3. The inline APISecret value
func (a *AssetStoreConfig) GetAPISecret() (string, error) {
	return resolveSecret("asset store secret", a.APISecretFile, EnvAssetStoreSecret, a.APISecret)
}

// GetFolder returns the asset folder, defaulting to "catalog"
func (a *AssetStoreConfig) GetFolder() string {
	if a.Folder == "" {
		return defaultAssetFolder
	}
	return a.Folder
}

// GetTransformation returns the delivery transformation token
func (a *AssetStoreConfig) GetTransformation() string {
	if a.Transformation == "" {
		return defaultAssetTransform
	}
	return a.Transformation
}

// GetBaseURL returns the admin/upload API root
func (a *AssetStoreConfig) GetBaseURL() string {
	if a.BaseURL == "" {
		return defaultAssetBaseURL
	}
	return strings.TrimRight(a.BaseURL, "/")
}

// GetDeliveryURL returns the delivery root
func (a *AssetStoreConfig) GetDeliveryURL() string {
	if a.DeliveryURL == "" {
		return defaultAssetDeliveryURL
	}
	return strings.TrimRight(a.DeliveryURL, "/")
}

// GetCacheSize returns the canonical URL cache size
func (a *AssetStoreConfig) GetCacheSize() int {
	if a.CacheSize <= 0 {
		return defaultAssetCacheSize
	}
	return a.CacheSize
}

// GetSchedule returns the cron schedule, defaulting to daily at 03:00
func (s *SyncConfig) GetSchedule() string {
	if s.Schedule == "" {
		return defaultSchedule
	}
	return s.Schedule
}

// GetRunOnStartup returns whether a run is triggered at process start
func (s *SyncConfig) GetRunOnStartup() bool {
	if s.RunOnStartup == nil {
		return true
	}
	return *s.RunOnStartup
}

// GetTimeout returns the per-run timeout, defaulting to 15m
func (s *SyncConfig) GetTimeout() time.Duration {
	return parseDurationOr(s.Timeout, defaultSyncTimeout)
}

// GetKey returns the lock key
func (l *LockConfig) GetKey() string {
	if l.Key == "" {
		return defaultLockKey
	}
	return l.Key
}

// GetTTL returns the lock TTL, defaulting to 30m
func (l *LockConfig) GetTTL() time.Duration {
	return parseDurationOr(l.TTL, defaultLockTTL)
}

// GetExchange returns the events exchange
func (e *EventsConfig) GetExchange() string {
	if e.Exchange == "" {
		return defaultEventsExchange
	}
	return e.Exchange
}

// GetRoutingKey returns the events routing key
func (e *EventsConfig) GetRoutingKey() string {
	if e.RoutingKey == "" {
		return defaultEventsRoutingKey
	}
	return e.RoutingKey
}

// GetType returns the storage type, defaulting to postgres
func (s *StorageConfig) GetType() string {
	if s.Type == "" {
		return StorageTypePostgres
	}
	return s.Type
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CATALOG_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	return resolveSecret("database password", d.PasswordFile, EnvDatabasePassword, "")
}

// GetConnectRetry returns how long the first connection is retried
func (d *DatabaseConfig) GetConnectRetry() time.Duration {
	return parseDurationOr(d.ConnectRetry, defaultDatabaseRetryLimit)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = defaultDatabaseSSLMode
	}

	port := d.Port
	if port == 0 {
		port = defaultDatabasePort
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetJWTSecret returns the JWT signing secret using the following priority:
// 1. Read from JWTSecretFile if specified
// 2. Read from CATALOG_JWT_SECRET environment variable
// 3. The inline JWTSecret value
func (a *AuthConfig) GetJWTSecret() (string, error) {
	return resolveSecret("jwt secret", a.JWTSecretFile, EnvJWTSecret, a.JWTSecret)
}

// resolveSecret reads a secret from file, then environment, then the inline value
func resolveSecret(name, file, envVar, inline string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read %s from file %s: %w", name, file, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	if inline != "" {
		return inline, nil
	}

	return "", fmt.Errorf("no %s configured: set the file option or the %s environment variable", name, envVar)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
