// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"casei/internal/models"
	"casei/internal/registry"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonTagName)
		_ = v.RegisterValidation("change_action", validateChangeAction)
		_ = v.RegisterValidation("content_type", validateContentType)
		_ = v.RegisterValidation("role", validateRole)
		_ = v.RegisterValidation("change_status", validateChangeStatus)
	}
}

// jsonTagName reports field names the way clients send them.
func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateChangeAction(fl validator.FieldLevel) bool {
	return models.ChangeAction(fl.Field().String()).Valid()
}

func validateContentType(fl validator.FieldLevel) bool {
	_, ok := registry.Lookup(fl.Field().String())
	return ok
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().Int()).Valid()
}

func validateChangeStatus(fl validator.FieldLevel) bool {
	return models.ChangeStatus(fl.Field().Int()).Valid()
}

// FieldErrors maps a JSON field name to the failed validation tags.
type FieldErrors map[string][]string

// Struct validates obj with the binding engine and returns per-field errors.
// A nil map means the object is valid. Errors that are not validation
// errors are returned as-is.
func Struct(obj any) (FieldErrors, error) {
	err := binding.Validator.ValidateStruct(obj)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], fe.Tag())
	}
	return out, nil
}

// Only drops errors for fields not in keys. Used for partial validation,
// where absent fields are allowed to be missing.
func (f FieldErrors) Only(keys map[string]any) FieldErrors {
	out := FieldErrors{}
	for field, tags := range f {
		if _, ok := keys[field]; ok {
			out[field] = tags
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// String renders errors as "field: tag; field: tag" in field order.
func (f FieldErrors) String() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + strings.Join(f[field], ", ")
	}
	return strings.Join(parts, "; ")
}
