package middleware // middleware contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/golf-intranet/internal/utils"
)

// JWTAuth validates a Bearer access token and stores its claims in the
// context: "user_id" (uint64), "role" (ADMIN or MANAGER) and "name".
// Handlers read them through UserID, Role and IsAdmin.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            id, claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxUserID, id)
            c.Set(ctxRole, claims.Role)
            c.Set(ctxName, claims.Name)
            return next(c)
        }
    }
}
