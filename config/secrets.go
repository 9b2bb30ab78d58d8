package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"

	"scorekit/adapters/sqlx"
)

// SecretStore resolves secrets by name.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s not set", key)
	}
	return v, nil
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// LoadSecretsFromEnv fills connection secrets from the conventional hosting
// variables REDIS_URL and DATABASE_URL when the prefixed settings are empty.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}

// LoadSecrets is LoadSecretsFromEnv with an explicit store.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	if c.Storage.Redis.URL == "" {
		c.Storage.Redis.URL = store.GetWithDefault(ctx, "REDIS_URL", "")
	}
	if c.Storage.SQL.DSN == "" {
		if dsn := store.GetWithDefault(ctx, "DATABASE_URL", ""); dsn != "" {
			c.Storage.SQL.DSN = dsn
			if strings.HasPrefix(dsn, "mysql://") {
				mdsn, err := mysqlDSN(dsn)
				if err != nil {
					return fmt.Errorf("DATABASE_URL: %w", err)
				}
				c.Storage.SQL.Driver = sqlx.DriverMySQL
				c.Storage.SQL.DSN = mdsn
			}
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config after secrets: %w", err)
	}
	return nil
}

// mysqlDSN converts a mysql:// URL into a go-sql-driver DSN. URLs already in
// the driver's own form (user:pw@tcp(host:port)/db) only lose the scheme.
func mysqlDSN(raw string) (string, error) {
	trimmed := strings.TrimPrefix(raw, "mysql://")
	if strings.Contains(trimmed, "@tcp(") || strings.Contains(trimmed, "@unix(") {
		return trimmed, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("mysql url has no host")
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if len(u.Query()) > 0 {
		cfg.Params = map[string]string{}
		for k, v := range u.Query() {
			cfg.Params[k] = v[len(v)-1]
		}
	}
	return cfg.FormatDSN(), nil
}
