package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// validate is shared by every handler; it reports fields by their JSON name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindJSON decodes the request body into dst and validates it. Failures
// wrap domain.ErrInvalidInput.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
