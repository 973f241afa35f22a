// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxPropicBytes = 4 * 1024 * 1024

var (
	languageRE   = regexp.MustCompile(`^[A-Z]{2}$`)
	registerOnce sync.Once
)

var customTags = map[string]validator.Func{
	"language": func(fl validator.FieldLevel) bool {
		return languageRE.MatchString(fl.Field().String())
	},
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
	"propic": func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPropicBytes
	},
}

func registerTags(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q validator: %w", tag, err)
		}
	}
	return nil
}

// registerValidators configures gin's validator: JSON field names in errors,
// a "language" tag for two-letter upper-case codes, "notblank" for strings
// that must contain non-space characters and "propic" for the picture size
// limit.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := registerTags(v, customTags); err != nil {
			panic(fmt.Sprintf("httpapi: %v", err))
		}
	})
}

// validationDetails converts a binding error into a field to message map.
func validationDetails(err error) map[string]string {
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = fieldMessage(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "cannot be blank"
	case "email":
		return "must be a valid email"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "language":
		return "must be a two-letter upper-case language code"
	case "ipv4":
		return "must be a valid IPv4 address"
	case "propic":
		return "exceeds the maximum size of 4 MB"
	default:
		return "is invalid"
	}
}
