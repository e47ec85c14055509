package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodHead,
	}
	corsHeaders = []string{echo.HeaderAuthorization, echo.HeaderContentType}
)

// CORSMiddleware allows a single browser origin with credentials.
type CORSMiddleware struct {
	origin string
	logger *logrus.Logger
}

func NewCORSMiddleware(origin string, logger *logrus.Logger) *CORSMiddleware {
	return &CORSMiddleware{origin: origin, logger: logger}
}

// Preflight answers every OPTIONS request with 200 and an empty body. It runs
// ahead of Handler, which would answer with 204, and never reaches the backend.
func (m *CORSMiddleware) Preflight() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			h := c.Response().Header()
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			h.Set(echo.HeaderAccessControlAllowOrigin, m.origin)
			h.Set(echo.HeaderAccessControlAllowMethods, strings.Join(corsMethods, ","))
			h.Set(echo.HeaderAccessControlAllowHeaders, strings.Join(corsHeaders, ","))
			h.Set(echo.HeaderAccessControlAllowCredentials, "true")
			if m.logger != nil {
				m.logger.WithFields(logrus.Fields{"path": c.Request().URL.Path, "origin": c.Request().Header.Get(echo.HeaderOrigin)}).Debug("answered CORS preflight")
			}
			return c.NoContent(http.StatusOK)
		}
	}
}

// Handler decorates actual requests with CORS headers.
func (m *CORSMiddleware) Handler() echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{m.origin},
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		AllowCredentials: true,
	})
}
