// Package validation builds the request validator with the custom tags used
// by member-facing payloads.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

// New returns a validator with custom tags registered. Field names in errors
// follow the json tag.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("jenis_kelamin", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.GenderMale, models.GenderFemale:
			return true
		default:
			return false
		}
	})
	return v
}

// Fields flattens validation errors into the offending field names.
func Fields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
