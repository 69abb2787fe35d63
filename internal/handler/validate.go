package handler

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	webURLPattern   = regexp.MustCompile(`^https?://.+`)
)

// Validator adapts go-playground/validator to echo.  Field names in error
// details are the JSON names the caller sent.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	// weburl accepts an http(s) URL or the empty string, which clears the
	// stored value.
	_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || webURLPattern.MatchString(s)
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fieldPath(fe)] = describe(fe)
	}
	return &apiError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "Validation error", Details: details}
}

// fieldPath drops the top-level struct name: "signInReq.email" -> "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "slug":
		return "must be 3-50 characters of lowercase letters, digits or hyphens"
	case "hexcolor6":
		return "must be a hex color like #1a2b3c"
	case "weburl":
		return "must start with http:// or https://"
	}
	return "is invalid (" + fe.Tag() + ")"
}

type normalizer interface {
	normalize()
}

// bind decodes the request into req, normalizes it when it knows how, and
// validates it.  Any failure is a 400.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequest("Invalid request body")
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(req)
}
