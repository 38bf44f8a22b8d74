package apiserver

import (
	"net/http"
	"strconv"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// RequireJWT validates the Authorization: Bearer <token> header and stores
// the resulting claims' subject as the request's AuthUser before calling
// through to the handler. Token extraction and the 401 path are delegated
// to echo-jwt; signature, expiry, issuer, and audience checks stay in
// JWTService.ValidateToken so route middleware and any direct caller agree
// on what a valid token is.
func RequireJWT(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return jwtService.ValidateToken(auth)
		},
		SuccessHandler: func(c echo.Context) {
			claims := c.Get("user").(*bdpClaims)
			SetUser(c, &AuthUser{ID: claims.Subject, Scopes: claims.Scopes})
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, envelope{Success: false, Error: "missing or invalid bearer token"})
		},
	})
}

func parsePositiveInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, strconv.ErrRange
	}
	return v, nil
}
