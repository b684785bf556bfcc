package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NoRouteMatched reply bare status codes for unknown routes and methods
func NoRouteMatched() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			var he *echo.HTTPError
			if errors.As(err, &he) && (he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed) {
				return c.NoContent(he.Code)
			}
			return err
		}
	}
}
