package blocks

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = newValidator()
	keyPattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	safeSchemes  = []string{"http://", "https://", "mailto:", "tel:"}
	linkMessage  = "must be a relative path, #anchor, mailto:, tel: or http(s) URL"
	fieldPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("link", func(fl validator.FieldLevel) bool {
		return IsSafeLink(fl.Field().String())
	})
	_ = v.RegisterValidation("key", func(fl validator.FieldLevel) bool {
		return keyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return fieldPattern.MatchString(fl.Field().String())
	})
	return v
}

// IsSafeLink 允许空串、站内相对路径、锚点以及 http(s)/mailto/tel 链接。
func IsSafeLink(raw string) bool {
	link := strings.TrimSpace(raw)
	if link == "" {
		return true
	}
	if strings.ContainsAny(link, " \t\r\n\"'<>\\") {
		return false
	}
	if strings.HasPrefix(link, "#") {
		return true
	}
	if strings.HasPrefix(link, "/") {
		return !strings.HasPrefix(link, "//")
	}
	lower := strings.ToLower(link)
	for _, scheme := range safeSchemes {
		if strings.HasPrefix(lower, scheme) && len(lower) > len(scheme) {
			return true
		}
	}
	return false
}

func validateStruct(payload Payload) []FieldError {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "data", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
	}
	return out
}

// fieldPath 去掉命名空间开头的结构体名，例如 "FAQ.items[0].question" -> "items[0].question"。
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		if isList {
			return "must contain at least one item"
		}
		return "is required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "link":
		return linkMessage
	case "key":
		return "may contain only lowercase letters, digits, '-' and '_'"
	case "fieldname":
		return "must start with a letter and contain only letters, digits and '_'"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
