package helpers

import (
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	keySubject        ctxKey = "subject"
	keyResponseSource ctxKey = "response_source"
)

func SetSubject(c echo.Context, sub string) { c.Set(string(keySubject), sub) }
func GetSubject(c echo.Context) (string, bool) {
	v := c.Get(string(keySubject))
	s, ok := v.(string)
	return s, ok
}

// SetResponseSource records which stage of the fallback chain answered.
func SetResponseSource(c echo.Context, source string) { c.Set(string(keyResponseSource), source) }
func GetResponseSource(c echo.Context) (string, bool) {
	v := c.Get(string(keyResponseSource))
	s, ok := v.(string)
	return s, ok && s != ""
}
