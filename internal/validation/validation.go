// Package validation holds the struct tags shared by HTTP bodies and RPC
// params. Importing it registers them on gin's binding engine.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var eventIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		panic("validation: gin engine is not go-playground/validator")
	}
	if err := Register(v); err != nil {
		panic(err)
	}
}

// Register adds the custom tags to v and makes errors report JSON names.
//
//	eventid      3-64 of [A-Za-z0-9_-]
//	userid       uuid4
//	eventstatus  not_started | live | completed
//	displayname  1-64 characters
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("eventid", validEventID); err != nil {
		return err
	}
	v.RegisterAlias("userid", "uuid4")
	v.RegisterAlias("eventstatus", "oneof=not_started live completed")
	v.RegisterAlias("displayname", "min=1,max=64")
	v.RegisterTagNameFunc(jsonName)
	return nil
}

// New is a standalone validator reading `validate` tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

func validEventID(fl validator.FieldLevel) bool {
	return eventIDPattern.MatchString(fl.Field().String())
}

func jsonName(f reflect.StructField) string {
	for _, tag := range []string{"json", "uri", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Error is one failed field, as returned to API clients.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationError lists the failed fields of err; other errors give nil.
func FormatValidationError(err error) []Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]Error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Error{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eventid":
		return "must be 3-64 letters, digits, '-' or '_'"
	case "displayname":
		return "must be 1-64 characters"
	case "eventstatus":
		return "must be one of not_started, live, completed"
	case "userid":
		return "must be a UUID"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
