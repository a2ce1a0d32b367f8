package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleError is the echo HTTPErrorHandler. Every error leaves the facade as
// {"error": "<message>"}; errors that are not echo.HTTPError become 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
		if he.Internal != nil && s.config.Debug {
			msg = fmt.Sprintf("%s: %v", msg, he.Internal)
		}
	}

	if code >= http.StatusInternalServerError {
		s.log.WithContext(c.Request().Context()).Error("request failed",
			logger.String("method", c.Request().Method),
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", code),
			logger.Error(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, ErrorResponse{Error: msg})
	}
	if werr != nil {
		s.log.Warn("failed to write error response", logger.Error(werr))
	}
}
