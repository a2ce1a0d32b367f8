package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

// EnvPrefix prefixes every automatically bound variable, e.g.
// WIKICACHE_CACHE_MINENTRIESPERCATEGORY.
const EnvPrefix = "WIKICACHE"

// envBinding maps a conventional variable name onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"server.port", "PORT", validateEnvPort},
		{"database.mongo.uri", "MONGODB_URI", nil},
		{"database.postgres.dsn", "DATABASE_URL", nil},
		{"wikidata.endpoint", "WIKIDATA_ENDPOINT", validateEnvURL},
		{"redis.addr", "REDIS_ADDR", nil},
		{"redis.password", "REDIS_PASSWORD", nil},
		{"sentry.dsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars enables prefixed variables for every key and binds the
// conventional names. Invalid values are reported together.
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, b := range getEnvBindings() {
		// The prefixed name keeps precedence over the conventional one.
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(b.ConfigKey, ".", "_"))
		if err := v.BindEnv(b.ConfigKey, prefixed, b.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", b.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - ")).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	return nil
}
