package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8020, settings.Server.Port)
	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "https://query.wikidata.org/sparql", settings.Wikidata.Endpoint)
	assert.Equal(t, 30*time.Minute, settings.Wikidata.CacheTTL)
	assert.Equal(t, 3, settings.Wikidata.MaxAttempts)
	assert.Equal(t, 2*time.Second, settings.Wikidata.RetryDelay)
	assert.Equal(t, 500, settings.Cache.MinEntriesPerCategory)
	assert.True(t, settings.Cache.RequireImage)
	assert.Equal(t, "@every 6h", settings.Scheduler.Schedule)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  type: mysql
  mysql:
    host: db.internal
    database: trivia
cache:
  minentriespercategory: 50
  requireimage: false
wikidata:
  cachettl: 5m
`), 0o600))

	v := viper.New()
	v.Set("config", path)
	settings, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, settings.Server.Port)
	assert.Equal(t, DatabaseMySQL, settings.Database.Type)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, "3306", settings.Database.MySQL.Port)
	assert.Equal(t, 50, settings.Cache.MinEntriesPerCategory)
	assert.False(t, settings.Cache.RequireImage)
	assert.Equal(t, 5*time.Minute, settings.Wikidata.CacheTTL)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("MONGODB_URI", "mongodb://mongo:27017")
	t.Setenv("WIKICACHE_DATABASE_TYPE", "mongodb")
	t.Setenv("WIKICACHE_CACHE_MINENTRIESPERCATEGORY", "25")

	settings, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 7070, settings.Server.Port)
	assert.Equal(t, DatabaseMongo, settings.Database.Type)
	assert.Equal(t, "mongodb://mongo:27017", settings.Database.Mongo.URI)
	assert.Equal(t, 25, settings.Cache.MinEntriesPerCategory)
}

func TestPrefixedVariableWinsOverConventional(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("WIKICACHE_SERVER_PORT", "6060")

	settings, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 6060, settings.Server.Port)
}

func TestInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := LoadFrom(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		s, err := LoadFrom(viper.New())
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"unknown backend", func(s *Settings) { s.Database.Type = "oracle" }, "Database.Type"},
		{"postgres without dsn", func(s *Settings) { s.Database.Type = DatabasePostgres }, "postgres dsn"},
		{"mongo without uri", func(s *Settings) { s.Database.Type = DatabaseMongo }, "mongo uri"},
		{"bad endpoint", func(s *Settings) { s.Wikidata.Endpoint = "not a url" }, "Wikidata.Endpoint"},
		{"zero attempts", func(s *Settings) { s.Wikidata.MaxAttempts = 0 }, "MaxAttempts"},
		{"bad schedule", func(s *Settings) { s.Scheduler.Enabled = true; s.Scheduler.Schedule = "sometimes" }, "invalid schedule"},
		{"redis without addr", func(s *Settings) { s.Redis.Enabled = true; s.Redis.Addr = "" }, "redis"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveYAMLConfig(t *testing.T) {
	settings, err := LoadFrom(viper.New())
	require.NoError(t, err)
	settings.Cache.MinEntriesPerCategory = 42

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out Settings
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, 42, out.Cache.MinEntriesPerCategory)
	assert.Equal(t, settings.Wikidata.Endpoint, out.Wikidata.Endpoint)

	// Round trip through viper.
	v := viper.New()
	v.Set("config", path)
	reloaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.Cache.MinEntriesPerCategory)
}
