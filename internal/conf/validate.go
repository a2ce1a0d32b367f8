package conf

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSettings checks field constraints and the cross-field rules of the
// selected backends.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateSchedulerSettings(&settings.Scheduler); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.Redis.Enabled && settings.Redis.Addr == "" {
		ve.Errors = append(ve.Errors, "redis: addr is required when enabled")
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry: dsn is required when enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(db *DatabaseSettings) error {
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database: sqlite path is required")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database: mysql host and database are required")
		}
	case DatabasePostgres:
		if db.Postgres.DSN == "" {
			return fmt.Errorf("database: postgres dsn is required")
		}
	case DatabaseMongo:
		if db.Mongo.URI == "" {
			return fmt.Errorf("database: mongo uri is required")
		}
	}
	return nil
}

func validateSchedulerSettings(s *SchedulerSettings) error {
	if !s.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(s.Schedule); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", s.Schedule, err)
	}
	return nil
}
