package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Storage  StorageConfig
	AI       AIConfig
	Upload   UploadConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Cleanup  CleanupConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EMOTRACE_APP_ENV" required:"true"`
	Port         string `envconfig:"EMOTRACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EMOTRACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EMOTRACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EMOTRACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EMOTRACE_DB_DSN"`
	Driver string `envconfig:"EMOTRACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EMOTRACE_DB_HOST"`
	LegacyPort     int    `envconfig:"EMOTRACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EMOTRACE_DB_USER"`
	LegacyPassword string `envconfig:"EMOTRACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"EMOTRACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"EMOTRACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EMOTRACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EMOTRACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EMOTRACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EMOTRACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"EMOTRACE_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EMOTRACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EMOTRACE_REDIS_ADDR"`
	Password     string        `envconfig:"EMOTRACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"EMOTRACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EMOTRACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EMOTRACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EMOTRACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EMOTRACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EMOTRACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"EMOTRACE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"EMOTRACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"EMOTRACE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"EMOTRACE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"EMOTRACE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"EMOTRACE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"EMOTRACE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"EMOTRACE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"EMOTRACE_ARGON_KEY_LEN" default:"32"`
}

// StorageConfig configures the Cloudinary-style object store.
type StorageConfig struct {
	CloudName string        `envconfig:"EMOTRACE_STORAGE_CLOUD_NAME" required:"true"`
	APIKey    string        `envconfig:"EMOTRACE_STORAGE_API_KEY" required:"true"`
	APISecret string        `envconfig:"EMOTRACE_STORAGE_API_SECRET" required:"true"`
	Timeout   time.Duration `envconfig:"EMOTRACE_STORAGE_TIMEOUT" default:"30s"`
}

// AIConfig configures the external emotion-inference server.
type AIConfig struct {
	Enabled       bool          `envconfig:"EMOTRACE_AI_ENABLED" default:"true"`
	ServerURL     string        `envconfig:"EMOTRACE_AI_SERVER_URL" default:"http://localhost:5000"`
	Timeout       time.Duration `envconfig:"EMOTRACE_AI_TIMEOUT" default:"60s"`
	VideoTimeout  time.Duration `envconfig:"EMOTRACE_AI_VIDEO_TIMEOUT" default:"120s"`
	ProbeTimeout  time.Duration `envconfig:"EMOTRACE_AI_PROBE_TIMEOUT" default:"5s"`
	ProbeCacheTTL time.Duration `envconfig:"EMOTRACE_AI_PROBE_CACHE_TTL" default:"30s"`
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	Folder         string        `envconfig:"EMOTRACE_UPLOAD_FOLDER" default:"media_uploads"`
	MaxUploadMB    int           `envconfig:"EMOTRACE_MAX_UPLOAD_MB" default:"100"`
	MaxBatchSize   int           `envconfig:"EMOTRACE_UPLOAD_MAX_BATCH" default:"10"`
	ExtractTimeout time.Duration `envconfig:"EMOTRACE_EXTRACT_TIMEOUT" default:"20s"`
	ExtractEnabled bool          `envconfig:"EMOTRACE_EXTRACT_ENABLED" default:"true"`
}

func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadMB) * 1024 * 1024
}

type GCPConfig struct {
	ProjectID string `envconfig:"EMOTRACE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	MediaDeletionTopic        string `envconfig:"EMOTRACE_PUBSUB_MEDIA_DELETION_TOPIC" default:"emotrace-media-deleted"`
	MediaDeletionSubscription string `envconfig:"EMOTRACE_PUBSUB_MEDIA_DELETION_SUBSCRIPTION"`
}

type CleanupConfig struct {
	MaxDeleteAttempts int           `envconfig:"EMOTRACE_CLEANUP_MAX_DELETE_ATTEMPTS" default:"5"`
	RetryBackoff      time.Duration `envconfig:"EMOTRACE_CLEANUP_RETRY_BACKOFF" default:"2s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
