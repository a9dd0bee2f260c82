package handler

import (
    "errors"
    "net/http"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// Validator adapts validator/v10 to echo.Validator.  Register it with
// e.Validator = handler.NewValidator().
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    // report json names instead of Go field names
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

// bindValid binds the request body into dst and validates it.  On failure
// it has already written a 400 response and returns false.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
    if err := c.Bind(dst); err != nil {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(dst); err != nil {
        var ve validator.ValidationErrors
        if errors.As(err, &ve) {
            fields := make(map[string]string, len(ve))
            for _, fe := range ve {
                fields[fe.Field()] = fe.Tag()
            }
            return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
        }
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    return true, nil
}
