package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

func (cfg CORSConfig) allows(origin string) bool {
	if len(cfg.AllowOrigins) == 0 {
		return true
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// CORS returns CORS middleware.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if !cfg.allows(origin) {
				return next(c)
			}

			h := c.Response().Header()
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			switch {
			case origin != "":
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			case len(cfg.AllowOrigins) > 0 && cfg.AllowOrigins[0] == "*":
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			}
			if methods != "" {
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
			}
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}

			if c.Request().Method == http.MethodOptions {
				if cfg.MaxAge > 0 {
					h.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
				}
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
