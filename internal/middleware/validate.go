package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const bodyKey = "validated_body"

var validate = validator.New()

// FieldErrors is returned when a request body fails validation
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, tag := range f {
		parts = append(parts, field+": "+tag)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ValidateBody parses the JSON body into a fresh T, validates it and stores
// it for Body. An empty body is parsed as the zero T.
func ValidateBody[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dst := new(T)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(dst); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
			}
		}

		if err := validate.Struct(dst); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			fields := FieldErrors{}
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return fields
		}

		c.Locals(bodyKey, dst)
		return c.Next()
	}
}

// Body returns the value stored by ValidateBody
func Body[T any](c *fiber.Ctx) *T {
	v, _ := c.Locals(bodyKey).(*T)
	return v
}

// ErrorHandler renders every error as {"error": ...}. Server errors keep
// their details in the log only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{}

	var fe *fiber.Error
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		code = fiber.StatusUnprocessableEntity
		body["error"] = "Validation failed"
		body["fields"] = fields
	case errors.As(err, &fe):
		code = fe.Code
		body["error"] = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
		if fe == nil {
			body["error"] = http.StatusText(code)
		}
	}

	return c.Status(code).JSON(body)
}
