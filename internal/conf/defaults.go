package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8020)
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 90*time.Second)
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("server.allowedorigins", []string{})

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	v.SetDefault("database.sqlite.path", "data/wikidata-cache.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "wikidata_cache")
	v.SetDefault("database.postgres.dsn", "")
	v.SetDefault("database.mongo.uri", "")
	v.SetDefault("database.mongo.database", "wikidata_cache")
	v.SetDefault("database.mongo.collection", "entries")
	v.SetDefault("database.mongo.timeout", 10*time.Second)

	// WDQS throttles clients by query processing time.
	v.SetDefault("wikidata.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("wikidata.useragent", "")
	v.SetDefault("wikidata.language", "es,en")
	v.SetDefault("wikidata.querylimit", 500)
	v.SetDefault("wikidata.timeout", 60*time.Second)
	v.SetDefault("wikidata.cachettl", 30*time.Minute)
	v.SetDefault("wikidata.maxattempts", 3)
	v.SetDefault("wikidata.retrydelay", 2*time.Second)
	v.SetDefault("wikidata.maxretryafter", 30*time.Second)
	v.SetDefault("wikidata.ratelimit", 2.0)
	v.SetDefault("wikidata.rateburst", 2)

	v.SetDefault("cache.minentriespercategory", 500)
	v.SetDefault("cache.defaultsamplesize", 10)
	v.SetDefault("cache.requireimage", true)
	v.SetDefault("cache.randomentryattempts", 3)
	v.SetDefault("cache.warmonstart", true)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.schedule", "@every 6h")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockttl", 2*time.Minute)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/wikidata-cache.log")
	v.SetDefault("logging.file_output.max_size", 100)
	v.SetDefault("logging.file_output.max_age", 30)
	v.SetDefault("logging.file_output.max_rotated_files", 10)
	v.SetDefault("logging.file_output.compress", true)
	v.SetDefault("logging.file_output.level", "info")
}
