package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/internal/journal"
	"github.com/wolfman30/supplier-onboarding/internal/redact"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := redis.NewClient(redisOptions(cfg))
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// AsynqRedisOpt returns the queue connection options, or nil when Redis is
// not configured.
func AsynqRedisOpt(cfg *appconfig.Config) asynq.RedisConnOpt {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt
}

func redisOptions(cfg *appconfig.Config) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Salesforce groups the CRM pieces shared by the HTTP handlers.
type Salesforce struct {
	Store     salesforce.SessionStore
	OAuth     *salesforce.OAuth
	Refresher salesforce.Refresher
	Client    *salesforce.Client
}

// BuildSalesforce wires the session store, the refresh flow and the REST
// client. Sessions live in Redis when a client is given so every replica
// shares the login. A JWT key file switches refresh to the bearer flow.
func BuildSalesforce(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (*Salesforce, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var store salesforce.SessionStore
	if redisClient != nil {
		store = salesforce.NewRedisSessionStore(redisClient, "")
	} else {
		logger.Warn("REDIS_ADDR not set; salesforce session kept in memory")
		store = salesforce.NewMemorySessionStore()
	}

	oauth := salesforce.NewOAuth(salesforce.OAuthConfig{
		ClientID:     cfg.SalesforceClientID,
		ClientSecret: cfg.SalesforceClientSecret,
		LoginURL:     cfg.SalesforceLoginURL,
		RedirectURI:  cfg.SalesforceRedirectURI,
	}, nil)

	var refresher salesforce.Refresher
	switch {
	case strings.TrimSpace(cfg.SalesforceJWTKeyFile) != "":
		keyPEM, err := os.ReadFile(cfg.SalesforceJWTKeyFile)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: read salesforce jwt key: %w", err)
		}
		bearer, err := salesforce.NewJWTBearer(cfg.SalesforceClientID, cfg.SalesforceUsername, cfg.SalesforceLoginURL, keyPEM, nil)
		if err != nil {
			return nil, err
		}
		refresher = bearer
		logger.Info("salesforce jwt bearer flow enabled", "username", cfg.SalesforceUsername)
	case oauth.Configured():
		refresher = oauth
	default:
		logger.Warn("salesforce connected app not configured; /login will fail")
	}

	client := salesforce.NewClient(salesforce.ClientConfig{
		Store:      store,
		Refresher:  refresher,
		APIVersion: cfg.SalesforceAPIVersion,
		Logger:     logger,
	})
	return &Salesforce{Store: store, OAuth: oauth, Refresher: refresher, Client: client}, nil
}

// SeedSession tries to establish a CRM session without a browser. Failures
// are logged; the operator can still log in through /login.
func (s *Salesforce) SeedSession(ctx context.Context, refreshToken string, logger *logging.Logger) bool {
	if logger == nil {
		logger = logging.Default()
	}
	ok, err := salesforce.Seed(ctx, s.Store, s.Refresher, refreshToken)
	if err != nil {
		logger.Warn("salesforce session seed failed", "error", err)
		return false
	}
	if ok {
		logger.Info("salesforce session ready")
	}
	return ok
}

// BuildJournal opens the CRM write journal. Without DATABASE_URL writes are
// only logged. The returned close func is never nil.
func BuildJournal(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (journal.Recorder, func(), error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return journal.Nop{}, func() {}, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("bootstrap: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	logger.Info("crm write journal enabled")
	return journal.NewStore(db), func() { _ = db.Close() }, nil
}

// BuildSanitizer loads the redaction rules, falling back to the embedded
// defaults when no file is configured.
func BuildSanitizer(cfg *appconfig.Config) (*redact.Sanitizer, error) {
	path := ""
	if cfg != nil {
		path = cfg.RedactionRulesFile
	}
	rules, err := redact.LoadRules(path)
	if err != nil {
		return nil, err
	}
	return redact.New(rules)
}
