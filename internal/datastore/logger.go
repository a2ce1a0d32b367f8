package datastore

import "github.com/questioncrawler/wikidata-cache/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Get("datastore")
}
