package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"trailWatch/pkg/e"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// report violations under the wire field name, not the Go field name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	RegisterCustomValidations(validate)
}

// ValidateStruct runs the registered rules over s and converts any
// violations into a field-level *e.ValidationError.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = reason(fe)
	}
	return &e.ValidationError{Fields: fields}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "lat":
		return "must be between -90 and 90"
	case "lng":
		return "must be between -180 and 180"
	case "severity":
		return "must be one of Low, Medium, High"
	case "incident_status":
		return "must be one of Open, In Progress, Resolved, Closed"
	default:
		return "failed rule " + fe.Tag()
	}
}
